package reservation

import (
	"time"

	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
)

func ownedBy(r *model.Reservation, u *model.User) bool {
	return u.IsAuthenticated() && r.UserID == u.ID
}

// CanChange reports whether u may change every field of r.
func CanChange(r *model.Reservation, u *model.User, perms permission.Checker, now time.Time) bool {
	if !r.IsPersonal() && perms.Can(u, permission.CreateEventReservation) {
		return true
	}
	if r.StartTime.Before(now) {
		return false
	}
	return ownedBy(r, u) || (u.IsAuthenticated() && u.IsSuperuser)
}

// CanChangeEndTime reports whether u may still move the end of r.
func CanChangeEndTime(r *model.Reservation, u *model.User, now time.Time) bool {
	return r.EndTime.After(now) && (ownedBy(r, u) || (u.IsAuthenticated() && u.IsSuperuser))
}

// CanDelete reports whether u may cancel r.
func CanDelete(r *model.Reservation, u *model.User, perms permission.Checker, now time.Time) bool {
	if perms.Can(u, permission.DeleteReservation) {
		return true
	}
	return ownedBy(r, u) && r.StartTime.After(now)
}

// CanMarkFinished reports whether r is ongoing.
func CanMarkFinished(r *model.Reservation, now time.Time) bool {
	return r.StartTime.Before(now) && now.Before(r.EndTime)
}
