// Package apperr defines the error kinds surfaced by the reservation core and
// the mapping of each kind onto an HTTP status and a form field.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a class of error on the API boundary.
type Kind string

const (
	KindNotAuthorizedForMachineType Kind = "not_authorized_for_machine_type"
	KindOverlapsExistingReservation Kind = "overlaps_existing_reservation"
	KindInvalidInterval             Kind = "invalid_interval"
	KindStartInPast                 Kind = "start_in_past"
	KindExceedsFutureLimit          Kind = "exceeds_future_limit"
	KindMachineNotReservable        Kind = "machine_not_reservable"
	KindNotCoveredByAnyRule         Kind = "not_covered_by_any_rule"
	KindExceedsRuleMaxSingle        Kind = "exceeds_rule_max_single"
	KindExceedsRuleMaxCrossed       Kind = "exceeds_rule_max_crossed"
	KindQuotaExhausted              Kind = "quota_exhausted"
	KindCannotChangeStarted         Kind = "cannot_change_started_reservation"
	KindCannotChangeMachine         Kind = "cannot_change_machine_field"
	KindCannotFinishOutsideWindow   Kind = "cannot_finish_outside_window"
	KindCannotDeleteStarted         Kind = "cannot_delete_started"
	KindMissingEventPermission      Kind = "missing_event_permission"
	KindInvalidCardNumber           Kind = "invalid_card_number"

	KindValidation   Kind = "validation_error"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal_error"
)

// NonFieldErrors is the field name used for errors that belong to the whole request.
const NonFieldErrors = "__all__"

type kindInfo struct {
	field   string
	message string
	status  int
}

var kinds = map[Kind]kindInfo{
	KindNotAuthorizedForMachineType: {"machine", "You are not allowed to reserve machines of this type.", http.StatusBadRequest},
	KindOverlapsExistingReservation: {NonFieldErrors, "The time slot is not available.", http.StatusBadRequest},
	KindInvalidInterval:             {"end_time", "The start time must be before the end time.", http.StatusBadRequest},
	KindStartInPast:                 {"start_time", "The reservation can't start in the past.", http.StatusBadRequest},
	KindExceedsFutureLimit:          {"end_time", "Reservations can only be made 28 days ahead of time.", http.StatusBadRequest},
	KindMachineNotReservable:        {"machine", "The machine is out of order or under maintenance.", http.StatusBadRequest},
	KindNotCoveredByAnyRule:         {NonFieldErrors, "It is not possible to reserve the machine during these hours. Check the rules for when the machine is reservable.", http.StatusBadRequest},
	KindExceedsRuleMaxSingle:        {NonFieldErrors, "The reservation is longer than the rules allow.", http.StatusBadRequest},
	KindExceedsRuleMaxCrossed:       {NonFieldErrors, "The reservation spends too long inside one of the rule periods it crosses.", http.StatusBadRequest},
	KindQuotaExhausted:              {NonFieldErrors, "The reservation exceeds your quota.", http.StatusBadRequest},
	KindCannotChangeStarted:         {"start_time", "The start time of a started reservation cannot be changed.", http.StatusBadRequest},
	KindCannotChangeMachine:         {"machine", "The machine of a reservation cannot be changed.", http.StatusBadRequest},
	KindCannotFinishOutsideWindow:   {NonFieldErrors, "The reservation can only be marked as finished while it is ongoing.", http.StatusBadRequest},
	KindCannotDeleteStarted:         {NonFieldErrors, "A reservation that has started cannot be deleted.", http.StatusBadRequest},
	KindMissingEventPermission:      {"event", "You are not allowed to create event or special reservations.", http.StatusBadRequest},
	KindInvalidCardNumber:           {"card_number", "Card number is invalid.", http.StatusBadRequest},

	KindValidation:   {NonFieldErrors, "Validation failed.", http.StatusBadRequest},
	KindNotFound:     {NonFieldErrors, "Not found.", http.StatusNotFound},
	KindUnauthorized: {NonFieldErrors, "Authentication required.", http.StatusUnauthorized},
	KindForbidden:    {NonFieldErrors, "You do not have permission to perform this action.", http.StatusForbidden},
	KindConflict:     {NonFieldErrors, "The resource is in use.", http.StatusConflict},
	KindInternal:     {NonFieldErrors, "Internal server error.", http.StatusInternalServerError},
}

// AppError carries a kind, a human readable message and the field it belongs to.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field"`
	Status  int    `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New returns an AppError of the given kind. An empty message uses the kind's default.
func New(kind Kind, message string) *AppError {
	info, ok := kinds[kind]
	if !ok {
		info = kinds[KindInternal]
	}
	if message == "" {
		message = info.message
	}
	return &AppError{Kind: kind, Message: message, Field: info.field, Status: info.status}
}

// Newf is New with a formatted message.
func Newf(kind Kind, format string, args ...any) *AppError {
	return New(kind, fmt.Sprintf(format, args...))
}

// OnField returns a copy of e attached to another field.
func (e *AppError) OnField(field string) *AppError {
	cp := *e
	cp.Field = field
	return &cp
}

// From extracts an AppError from err, or nil.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	appErr := From(err)
	return appErr != nil && appErr.Kind == kind
}

// NotFound is shorthand for a not_found error naming the missing entity.
func NotFound(entity string) *AppError {
	return Newf(KindNotFound, "%s not found.", entity)
}

// IsDuplicate reports whether err is a unique constraint violation from postgres or sqlite.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
