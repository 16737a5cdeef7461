// Package permission answers capability questions such as "may this user create event
// reservations" through a casbin enforcer. Superusers hold every capability.
package permission

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"makequeue-backend/internal/logger"
	"makequeue-backend/internal/model"
)

// Capability names an action a user may be granted.
type Capability string

const (
	CreateEventReservation Capability = "create_event_reservation"
	DeleteReservation      Capability = "delete_reservation"
	ChangeReservation      Capability = "change_reservation"
	AddReservation         Capability = "add_reservation"
	ViewReservationUser    Capability = "view_reservation_user"
	InternalMember         Capability = "internal_member"
	ChangeMachine          Capability = "change_machine"
	ChangeReservationRule  Capability = "change_reservation_rule"
	ChangeQuota            Capability = "change_quota"
	ChangeCourse           Capability = "change_course"
)

// Checker is the read side used by the reservation core.
type Checker interface {
	Can(user *model.User, capability Capability) bool
}

// defaultModel grants capabilities to subjects directly or through roles.
const defaultModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

var _ Checker = (*Enforcer)(nil)

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	logger   *slog.Logger
}

// NewEnforcer loads policies from the casbin_rule table. An empty modelPath uses the built-in model.
// Policies written by other processes are only seen after LoadPolicy or while StartAutoReload runs.
func NewEnforcer(db *gorm.DB, modelPath string) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := loadModel(modelPath)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}

	return &Enforcer{enforcer: enforcer, logger: logger.WithComponent("permission")}, nil
}

// NewMemoryEnforcer keeps policies in memory only.
func NewMemoryEnforcer() (*Enforcer, error) {
	m, err := loadModel("")
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return &Enforcer{enforcer: enforcer, logger: logger.WithComponent("permission")}, nil
}

func loadModel(path string) (casbinmodel.Model, error) {
	var (
		m   casbinmodel.Model
		err error
	)
	if path == "" {
		m, err = casbinmodel.NewModelFromString(defaultModel)
	} else {
		m, err = casbinmodel.NewModelFromFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	return m, nil
}

// UserSubject is the casbin subject of a user.
func UserSubject(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// Can reports whether user holds capability. Anonymous users hold nothing.
func (e *Enforcer) Can(user *model.User, capability Capability) bool {
	if !user.IsAuthenticated() {
		return false
	}
	if user.IsSuperuser {
		return true
	}

	allowed, err := e.enforcer.Enforce(UserSubject(user.ID), string(capability))
	if err != nil {
		e.logger.Error("permission check failed", "error", err, "user_id", user.ID, "capability", capability)
		return false
	}
	return allowed
}

// Grant gives subject (a user subject or a role name) a capability.
func (e *Enforcer) Grant(subject string, capability Capability) error {
	if _, err := e.enforcer.AddPolicy(subject, string(capability)); err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	return nil
}

// Revoke removes a capability from subject.
func (e *Enforcer) Revoke(subject string, capability Capability) error {
	if _, err := e.enforcer.RemovePolicy(subject, string(capability)); err != nil {
		return fmt.Errorf("failed to remove policy: %w", err)
	}
	return nil
}

// AddRoleForUser makes the user inherit every capability of role.
func (e *Enforcer) AddRoleForUser(userID int64, role string) error {
	if _, err := e.enforcer.AddRoleForUser(UserSubject(userID), role); err != nil {
		e.logger.Error("failed to add role for user", "error", err, "user_id", userID, "role", role)
		return fmt.Errorf("failed to add role for user: %w", err)
	}
	return nil
}

// LoadPolicy reloads policies from storage.
func (e *Enforcer) LoadPolicy() error {
	if err := e.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("failed to reload policy: %w", err)
	}
	e.logger.Info("policy reloaded")
	return nil
}

// StartAutoReload reloads policies from storage every interval until StopAutoReload.
func (e *Enforcer) StartAutoReload(interval time.Duration) {
	if interval <= 0 || e.enforcer.IsAutoLoadingRunning() {
		return
	}
	e.enforcer.StartAutoLoadPolicy(interval)
	e.logger.Info("policy auto reload started", "interval", interval)
}

func (e *Enforcer) StopAutoReload() {
	e.enforcer.StopAutoLoadPolicy()
}
