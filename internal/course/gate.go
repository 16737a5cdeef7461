// Package course decides who may use a machine type, based on the printer courses
// users have taken, and maintains the course records themselves.
package course

import (
	"context"
	"fmt"

	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/store"
)

// Gate evaluates machine type usage requirements.
type Gate struct {
	perms permission.Checker
}

func NewGate(perms permission.Checker) *Gate {
	return &Gate{perms: perms}
}

// CanUserUse reports whether u satisfies the usage requirement of mt.
func (g *Gate) CanUserUse(ctx context.Context, s store.Store, mt *model.MachineType, u *model.User) (bool, error) {
	if !u.IsAuthenticated() {
		return false, nil
	}

	requirement := mt.UsageRequirement.ShortName
	if requirement == model.PermissionAuthenticated {
		return true, nil
	}

	c, err := CourseFor(ctx, s, u)
	if err != nil {
		return false, err
	}
	if requirement == model.Permission3DPrinter {
		return c != nil || g.perms.Can(u, permission.AddReservation), nil
	}
	return c.HasPermission(requirement), nil
}

// CourseFor returns the course of u. A course registered under u's username before the
// account existed is linked to u on the way.
func CourseFor(ctx context.Context, s store.Store, u *model.User) (*model.Printer3DCourse, error) {
	if !u.IsAuthenticated() {
		return nil, nil
	}

	c, err := s.FindCourseForUser(ctx, u.ID)
	if err != nil || c != nil {
		return c, err
	}

	c, err = s.FindCourseByUsername(ctx, u.Username)
	if err != nil || c == nil {
		return c, err
	}
	if c.UserID != nil {
		return nil, nil
	}
	if err := Link(ctx, s, c, u); err != nil {
		return nil, err
	}
	return c, nil
}

// Link attaches c to u. A card number stored on the course moves onto the user.
func Link(ctx context.Context, s store.Store, c *model.Printer3DCourse, u *model.User) error {
	return s.WithTx(ctx, func(tx store.Store) error {
		c.UserID = &u.ID
		card := c.CardNumber
		c.CardNumber = nil
		if err := tx.SaveCourse(ctx, c); err != nil {
			return fmt.Errorf("failed to link course %d: %w", c.ID, err)
		}
		if card != nil {
			u.CardNumber = card
			if err := tx.SaveUser(ctx, u); err != nil {
				return err
			}
		}
		c.User = u
		return nil
	})
}
