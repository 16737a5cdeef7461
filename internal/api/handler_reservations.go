package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"makequeue-backend/internal/model"
	"makequeue-backend/internal/reservation"
)

type listMineQuery struct {
	Owner string `form:"owner" binding:"omitempty,oneof=ME MAKE"`
}

// ListMyReservations handles GET /api/reservations.
func (h *Handler) ListMyReservations(c *gin.Context) {
	var q listMineQuery
	if !h.bindQuery(c, &q) {
		return
	}
	owner := reservation.OwnerMe
	if q.Owner != "" {
		owner = reservation.Owner(q.Owner)
	}

	u := actor(c)
	listed, err := h.reservations.ListMine(c.Request.Context(), u, owner)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]listedReservationResponse, 0, len(listed))
	for i := range listed {
		l := &listed[i]
		resp = append(resp, listedReservationResponse{
			reservationResponse: newReservationResponse(&l.Reservation, u, h.perms),
			CanChange:           l.CanChange,
			CanChangeEndTime:    l.CanChangeEndTime,
			CanDelete:           l.CanDelete,
			CanMarkFinished:     l.CanMarkFinished,
		})
	}
	c.JSON(http.StatusOK, resp)
}

type createReservationRequest struct {
	Machine     int64  `json:"machine" binding:"required"`
	StartTime   string `json:"start_time" binding:"required,isotime"`
	EndTime     string `json:"end_time" binding:"required,isotime"`
	Kind        string `json:"kind" binding:"omitempty,oneof=PERSONAL EVENT SPECIAL"`
	Event       *int64 `json:"event"`
	EventTitle  string `json:"event_title" binding:"max=256"`
	EventLink   string `json:"event_link" binding:"omitempty,url,max=2048"`
	SpecialText string `json:"special_text" binding:"max=64"`
	Comment     string `json:"comment" binding:"max=2000"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	start, _ := parseTime(req.StartTime, h.loc)
	end, _ := parseTime(req.EndTime, h.loc)

	u := actor(c)
	r, err := h.reservations.Create(c.Request.Context(), u, reservation.CreateRequest{
		MachineID:   req.Machine,
		Start:       start,
		End:         end,
		Kind:        model.ReservationKind(req.Kind),
		EventID:     req.Event,
		EventTitle:  req.EventTitle,
		EventLink:   req.EventLink,
		SpecialText: req.SpecialText,
		Comment:     req.Comment,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newReservationResponse(r, u, h.perms))
}

type updateReservationRequest struct {
	Machine     *int64  `json:"machine"`
	StartTime   *string `json:"start_time" binding:"omitempty,isotime"`
	EndTime     *string `json:"end_time" binding:"omitempty,isotime"`
	Event       *int64  `json:"event"`
	EventTitle  *string `json:"event_title" binding:"omitempty,max=256"`
	EventLink   *string `json:"event_link" binding:"omitempty,url,max=2048"`
	SpecialText *string `json:"special_text" binding:"omitempty,max=64"`
	Comment     *string `json:"comment" binding:"omitempty,max=2000"`
}

func (h *Handler) optionalTime(value *string) *time.Time {
	if value == nil {
		return nil
	}
	t, _ := parseTime(*value, h.loc)
	return &t
}

// UpdateReservation handles PATCH /api/reservations/:id.
func (h *Handler) UpdateReservation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req updateReservationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	u := actor(c)
	r, err := h.reservations.Update(c.Request.Context(), u, id, reservation.UpdateRequest{
		MachineID:   req.Machine,
		Start:       h.optionalTime(req.StartTime),
		End:         h.optionalTime(req.EndTime),
		Comment:     req.Comment,
		EventID:     req.Event,
		EventTitle:  req.EventTitle,
		EventLink:   req.EventLink,
		SpecialText: req.SpecialText,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReservationResponse(r, u, h.perms))
}

// FinishReservation handles POST /api/reservations/:id/finish.
func (h *Handler) FinishReservation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	u := actor(c)
	r, err := h.reservations.MarkFinished(c.Request.Context(), u, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newReservationResponse(r, u, h.perms))
}

// CancelReservation handles DELETE /api/reservations/:id.
func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.reservations.Cancel(c.Request.Context(), actor(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
