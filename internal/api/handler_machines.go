package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListMachines handles GET /api/machines.
func (h *Handler) ListMachines(c *gin.Context) {
	listings, err := h.machines.List(c.Request.Context(), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]machineListingResponse, 0, len(listings))
	for i := range listings {
		resp = append(resp, newMachineListingResponse(&listings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

type reservationsQuery struct {
	StartDate string `form:"start_date" binding:"required,isotime"`
	EndDate   string `form:"end_date" binding:"required,isotime"`
}

// ListMachineReservations handles GET /api/machines/:id/reservations.
func (h *Handler) ListMachineReservations(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q reservationsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	start, _ := parseTime(q.StartDate, h.loc)
	end, _ := parseTime(q.EndDate, h.loc)

	entries, err := h.reservations.ListReservations(c.Request.Context(), actor(c), id, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type machineDataQuery struct {
	ExcludeReservation int64 `form:"exclude_reservation" binding:"omitempty,gte=1"`
}

// MachineData handles GET /api/machines/:id/data.
func (h *Handler) MachineData(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q machineDataQuery
	if !h.bindQuery(c, &q) {
		return
	}

	data, err := h.reservations.MachineData(c.Request.Context(), actor(c), id, q.ExcludeReservation)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

type weekQuery struct {
	CalendarYear *int `form:"calendar_year" binding:"omitempty,gte=1"`
	CalendarWeek *int `form:"calendar_week" binding:"omitempty,gte=1,lte=53"`
}

// MachineWeek handles GET /api/machines/:id/week.
func (h *Handler) MachineWeek(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q weekQuery
	if !h.bindQuery(c, &q) {
		return
	}

	view, err := h.reservations.MachineDetailForWeek(c.Request.Context(), actor(c), id, q.CalendarYear, q.CalendarWeek)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWeekResponse(view))
}

// MachineRules handles GET /api/machines/:id/rules.
func (h *Handler) MachineRules(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	set, err := h.reservations.ListMachineRules(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// MachineTypeRules handles GET /api/machine-types/:id/rules.
func (h *Handler) MachineTypeRules(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	set, err := h.reservations.ListRules(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

type freeSlotsQuery struct {
	Hours float64 `form:"hours" binding:"required,gt=0,lte=672"`
}

// FreeSlots handles GET /api/machine-types/:id/free-slots.
func (h *Handler) FreeSlots(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var q freeSlotsQuery
	if !h.bindQuery(c, &q) {
		return
	}

	slots, err := h.reservations.FindFreeSlots(c.Request.Context(), id, q.Hours)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]slotResponse, 0, len(slots))
	for i := range slots {
		resp = append(resp, newSlotResponse(&slots[i]))
	}
	c.JSON(http.StatusOK, resp)
}
