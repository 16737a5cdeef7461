package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"makequeue-backend/internal/admin"
	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/mw"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/reservation"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	machines     *machine.Service
	reservations *reservation.Service
	admin        *admin.Service
	courses      *course.Service
	perms        permission.Checker
	loc          *time.Location
	logger       *slog.Logger
}

// Services bundles what the handlers delegate to.
type Services struct {
	Machines     *machine.Service
	Reservations *reservation.Service
	Admin        *admin.Service
	Courses      *course.Service
	Permissions  permission.Checker
	Location     *time.Location
}

// NewHandler creates a new API handler.
func NewHandler(s Services) *Handler {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		machines:     s.Machines,
		reservations: s.Reservations,
		admin:        s.Admin,
		courses:      s.Courses,
		perms:        s.Permissions,
		loc:          loc,
		logger:       logger.WithComponent("api"),
	}
}

func actor(c *gin.Context) *model.User {
	return mw.CurrentUser(c)
}

// pathID reads a positive integer path parameter. Anything else is reported as not found.
func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(c, apperr.New(apperr.KindNotFound, ""))
		return 0, false
	}
	return id, true
}

// requireCapability guards a route group. Anonymous requests get 401, others without
// the capability 403.
func (h *Handler) requireCapability(capability permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := actor(c)
		if !u.IsAuthenticated() {
			h.respondError(c, apperr.New(apperr.KindUnauthorized, ""))
			return
		}
		if !h.perms.Can(u, capability) {
			h.respondError(c, apperr.New(apperr.KindForbidden, ""))
			return
		}
		c.Next()
	}
}

// requireLogin rejects anonymous requests.
func (h *Handler) requireLogin(c *gin.Context) {
	if !actor(c).IsAuthenticated() {
		h.respondError(c, apperr.New(apperr.KindUnauthorized, ""))
		return
	}
	c.Next()
}
