package api

import (
	"github.com/gin-gonic/gin"

	"makequeue-backend/internal/mw"
	"makequeue-backend/internal/permission"
)

// RouterConfig carries the middleware shared by every route.
type RouterConfig struct {
	Limiter *mw.IPRateLimiter
	Tokens  *mw.TokenIssuer
	Users   mw.UserLoader
}

// NewRouter creates and configures a new Gin router.
// It panics if the request validators cannot be registered.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	if err := registerValidators(); err != nil {
		panic(err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.AccessLog(h.logger))

	api := r.Group("/api")
	if cfg.Limiter != nil {
		api.Use(mw.RateLimiter(cfg.Limiter))
	}
	api.Use(mw.Authenticate(cfg.Tokens, cfg.Users))
	{
		api.GET("/machines", h.ListMachines)
		api.GET("/machines/:id/reservations", h.ListMachineReservations)
		api.GET("/machines/:id/data", h.requireLogin, h.MachineData)
		api.GET("/machines/:id/week", h.MachineWeek)
		api.GET("/machines/:id/rules", h.MachineRules)
		api.GET("/machine-types/:id/rules", h.MachineTypeRules)
		api.GET("/machine-types/:id/free-slots", h.FreeSlots)

		reservations := api.Group("/reservations", h.requireLogin)
		reservations.GET("", h.ListMyReservations)
		reservations.POST("", h.CreateReservation)
		reservations.PATCH("/:id", h.UpdateReservation)
		reservations.POST("/:id/finish", h.FinishReservation)
		reservations.DELETE("/:id", h.CancelReservation)

		admin := api.Group("/admin")
		{
			machines := admin.Group("", h.requireCapability(permission.ChangeMachine))
			machines.POST("/machines", h.CreateMachine)
			machines.PUT("/machines/:id", h.UpdateMachine)
			machines.DELETE("/machines/:id", h.DeleteMachine)
			machines.POST("/machine-types", h.CreateMachineType)
			machines.DELETE("/machine-types/:id", h.DeleteMachineType)

			rules := admin.Group("/machine-types/:id/rules", h.requireCapability(permission.ChangeReservationRule))
			rules.POST("", h.CreateRule)
			rules.PUT("/:rule_id", h.UpdateRule)
			rules.DELETE("/:rule_id", h.DeleteRule)

			quotas := admin.Group("/quotas", h.requireCapability(permission.ChangeQuota))
			quotas.POST("", h.CreateQuota)
			quotas.PUT("/:id", h.UpdateQuota)
			quotas.DELETE("/:id", h.DeleteQuota)

			courses := admin.Group("/courses", h.requireCapability(permission.ChangeCourse))
			courses.POST("", h.CreateCourse)
			courses.PUT("/:id", h.UpdateCourse)
		}
	}

	return r
}
