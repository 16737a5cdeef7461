// Package quota selects the quota a personal reservation is charged to.
package quota

import (
	"context"
	"fmt"
	"time"

	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/rules"
)

// Counter counts the reservations that occupy a quota for a user.
type Counter interface {
	CountQuotaReservations(ctx context.Context, q *model.Quota, userID int64, now time.Time) (int64, error)
}

// Engine evaluates quotas against a counter and the rule engine.
type Engine struct {
	counter Counter
	loc     *time.Location
}

// NewEngine returns an engine that projects times onto the week in loc.
func NewEngine(counter Counter, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{counter: counter, loc: loc}
}

// Request describes the reservation a quota is chosen for.
type Request struct {
	UserID int64
	Start  time.Time
	End    time.Time
	// CurrentQuotaID is the quota the reservation is already charged to, if any.
	CurrentQuotaID *int64
	// KeepCurrent keeps the current quota whenever it is still valid, so that saving
	// a reservation without changes never moves it to another quota.
	KeepCurrent bool
	Candidates  []model.Quota
	Rules       []model.ReservationRule
	Now         time.Time
}

// HasSpareCapacity reports whether q can carry one more reservation for userID.
func (e *Engine) HasSpareCapacity(ctx context.Context, q *model.Quota, userID int64, now time.Time) (bool, error) {
	n, err := e.counter.CountQuotaReservations(ctx, q, userID, now)
	if err != nil {
		return false, fmt.Errorf("count reservations on quota %d: %w", q.ID, err)
	}
	return n < int64(q.NumberOfReservations), nil
}

// CanCreateNew reports whether any of the candidates has spare capacity.
func (e *Engine) CanCreateNew(ctx context.Context, candidates []model.Quota, userID int64, now time.Time) (bool, error) {
	for i := range candidates {
		ok, err := e.HasSpareCapacity(ctx, &candidates[i], userID, now)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanIgnoreRules reports whether an ignore-rules quota with spare capacity exists among candidates.
func (e *Engine) CanIgnoreRules(ctx context.Context, candidates []model.Quota, userID int64, now time.Time) (bool, error) {
	for i := range candidates {
		if !candidates[i].IgnoreRules {
			continue
		}
		ok, err := e.HasSpareCapacity(ctx, &candidates[i], userID, now)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Best returns the quota the reservation should be charged to.
//
// When no candidate is valid the error explains why: a rule engine error when some quota had
// room but the interval broke the rules, quota_exhausted otherwise.
func (e *Engine) Best(ctx context.Context, req Request) (*model.Quota, error) {
	var ruleErr error
	ruleChecked := false

	var valid []model.Quota
	for i := range req.Candidates {
		q := &req.Candidates[i]

		charged := req.CurrentQuotaID != nil && *req.CurrentQuotaID == q.ID
		if !charged {
			ok, err := e.HasSpareCapacity(ctx, q, req.UserID, req.Now)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		if !q.IgnoreRules {
			if !ruleChecked {
				ruleErr = rules.ValidTime(req.Start.In(e.loc), req.End.In(e.loc), req.Rules)
				ruleChecked = true
			}
			if ruleErr != nil {
				continue
			}
		}
		valid = append(valid, *q)
	}

	if req.KeepCurrent && req.CurrentQuotaID != nil {
		for i := range valid {
			if valid[i].ID == *req.CurrentQuotaID {
				return &valid[i], nil
			}
		}
	}
	if best := Pick(valid); best != nil {
		return best, nil
	}
	if ruleErr != nil {
		return nil, ruleErr
	}
	return nil, apperr.New(apperr.KindQuotaExhausted, "")
}

// Pick chooses among valid quotas, preferring non-diminishing quotas and then quotas that follow the rules.
func Pick(valid []model.Quota) *model.Quota {
	if len(valid) == 0 {
		return nil
	}
	best := &valid[0]
	for i := 1; i < len(valid); i++ {
		if prefer(best, &valid[i]) {
			best = &valid[i]
		}
	}
	return best
}

func prefer(best, current *model.Quota) bool {
	if best.Diminishing {
		return !current.Diminishing || (best.IgnoreRules && !current.IgnoreRules)
	}
	return best.IgnoreRules && !current.IgnoreRules
}
