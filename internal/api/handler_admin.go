package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"makequeue-backend/internal/admin"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
)

type machineRequest struct {
	Name         string `json:"name" binding:"required,max=30"`
	MachineType  int64  `json:"machine_type" binding:"required"`
	MachineModel string `json:"machine_model" binding:"max=40"`
	StreamName   string `json:"stream_name" binding:"max=50"`
	Location     string `json:"location" binding:"max=40"`
	LocationURL  string `json:"location_url" binding:"omitempty,url"`
	Internal     bool   `json:"internal"`
	Status       string `json:"status" binding:"omitempty,oneof=F O M"`
	Priority     *int   `json:"priority"`
	InfoMessage  string `json:"info_message"`
}

func (r *machineRequest) input() machine.Input {
	return machine.Input{
		Name:          r.Name,
		MachineTypeID: r.MachineType,
		MachineModel:  r.MachineModel,
		StreamName:    r.StreamName,
		Location:      r.Location,
		LocationURL:   r.LocationURL,
		Internal:      r.Internal,
		Status:        model.MachineStatus(r.Status),
		Priority:      r.Priority,
		InfoMessage:   r.InfoMessage,
	}
}

// CreateMachine handles POST /api/admin/machines.
func (h *Handler) CreateMachine(c *gin.Context) {
	var req machineRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.machines.Create(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMachineResponse(m))
}

// UpdateMachine handles PUT /api/admin/machines/:id.
func (h *Handler) UpdateMachine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req machineRequest
	if !h.bindJSON(c, &req) {
		return
	}
	m, err := h.machines.Update(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMachineResponse(m))
}

// DeleteMachine handles DELETE /api/admin/machines/:id.
func (h *Handler) DeleteMachine(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.machines.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type machineTypeRequest struct {
	Name             string `json:"name" binding:"required,max=30"`
	UsageRequirement string `json:"usage_requirement" binding:"required"`
	CannotUseText    string `json:"cannot_use_text"`
	HasStream        bool   `json:"has_stream"`
	Priority         int    `json:"priority"`
}

// CreateMachineType handles POST /api/admin/machine-types.
func (h *Handler) CreateMachineType(c *gin.Context) {
	var req machineTypeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	mt, err := h.admin.CreateMachineType(c.Request.Context(), admin.MachineTypeInput{
		Name:             req.Name,
		UsageRequirement: req.UsageRequirement,
		CannotUseText:    req.CannotUseText,
		HasStream:        req.HasStream,
		Priority:         req.Priority,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newMachineTypeResponse(mt))
}

// DeleteMachineType handles DELETE /api/admin/machine-types/:id.
func (h *Handler) DeleteMachineType(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteMachineType(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type ruleRequest struct {
	StartTime              model.TimeOfDay `json:"start_time"`
	EndTime                model.TimeOfDay `json:"end_time"`
	DaysChanged            int             `json:"days_changed" binding:"gte=0,lte=7"`
	StartDays              []int           `json:"start_days" binding:"required,min=1,dive,gte=1,lte=7"`
	MaxHours               float64         `json:"max_hours" binding:"gt=0"`
	MaxInsideBorderCrossed float64         `json:"max_inside_border_crossed" binding:"gte=0"`
}

func (r *ruleRequest) rule() model.ReservationRule {
	return model.ReservationRule{
		StartTime:              r.StartTime,
		EndTime:                r.EndTime,
		DaysChanged:            r.DaysChanged,
		StartDays:              model.WeekdaysOf(r.StartDays...),
		MaxHours:               r.MaxHours,
		MaxInsideBorderCrossed: r.MaxInsideBorderCrossed,
	}
}

// CreateRule handles POST /api/admin/machine-types/:id/rules.
func (h *Handler) CreateRule(c *gin.Context) {
	typeID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req ruleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rule, err := h.admin.CreateRule(c.Request.Context(), typeID, req.rule())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRuleResponse(rule))
}

// UpdateRule handles PUT /api/admin/machine-types/:id/rules/:rule_id.
func (h *Handler) UpdateRule(c *gin.Context) {
	typeID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := h.pathID(c, "rule_id")
	if !ok {
		return
	}
	var req ruleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rule, err := h.admin.UpdateRule(c.Request.Context(), typeID, ruleID, req.rule())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRuleResponse(rule))
}

// DeleteRule handles DELETE /api/admin/machine-types/:id/rules/:rule_id.
func (h *Handler) DeleteRule(c *gin.Context) {
	typeID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	ruleID, ok := h.pathID(c, "rule_id")
	if !ok {
		return
	}
	if err := h.admin.DeleteRule(c.Request.Context(), typeID, ruleID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type quotaRequest struct {
	MachineType          int64  `json:"machine_type" binding:"required"`
	User                 *int64 `json:"user"`
	All                  bool   `json:"all"`
	NumberOfReservations int    `json:"number_of_reservations"`
	Diminishing          bool   `json:"diminishing"`
	IgnoreRules          bool   `json:"ignore_rules"`
}

func (r *quotaRequest) input() admin.QuotaInput {
	return admin.QuotaInput{
		MachineTypeID:        r.MachineType,
		UserID:               r.User,
		All:                  r.All,
		NumberOfReservations: r.NumberOfReservations,
		Diminishing:          r.Diminishing,
		IgnoreRules:          r.IgnoreRules,
	}
}

// CreateQuota handles POST /api/admin/quotas.
func (h *Handler) CreateQuota(c *gin.Context) {
	var req quotaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	q, err := h.admin.CreateQuota(c.Request.Context(), req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newQuotaResponse(q))
}

// UpdateQuota handles PUT /api/admin/quotas/:id.
func (h *Handler) UpdateQuota(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req quotaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	q, err := h.admin.UpdateQuota(c.Request.Context(), id, req.input())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newQuotaResponse(q))
}

// DeleteQuota handles DELETE /api/admin/quotas/:id.
func (h *Handler) DeleteQuota(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteQuota(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type courseRequest struct {
	Username    string   `json:"username" binding:"required,max=32"`
	Name        string   `json:"name" binding:"max=256"`
	DateTaken   string   `json:"date" binding:"required,isotime"`
	CardNumber  string   `json:"card_number"`
	Permissions []string `json:"course_permissions"`
}

func (h *Handler) courseInput(r *courseRequest) course.Input {
	date, _ := parseTime(r.DateTaken, h.loc)
	return course.Input{
		Username:    r.Username,
		Name:        r.Name,
		DateTaken:   date,
		CardNumber:  r.CardNumber,
		Permissions: r.Permissions,
	}
}

// CreateCourse handles POST /api/admin/courses.
func (h *Handler) CreateCourse(c *gin.Context) {
	var req courseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	created, err := h.courses.Create(c.Request.Context(), h.courseInput(&req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCourseResponse(created))
}

// UpdateCourse handles PUT /api/admin/courses/:id.
func (h *Handler) UpdateCourse(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req courseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	updated, err := h.courses.Update(c.Request.Context(), id, h.courseInput(&req))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCourseResponse(updated))
}
