package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_UsesKindDefaults(t *testing.T) {
	err := New(KindStartInPast, "")

	assert.Equal(t, "start_time", err.Field)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "The reservation can't start in the past.", err.Message)
}

func TestNew_UnknownKindIsInternal(t *testing.T) {
	err := New(Kind("mystery"), "boom")

	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, "boom", err.Message)
}

func TestFromAndIs_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create reservation: %w", New(KindQuotaExhausted, ""))

	assert.True(t, Is(wrapped, KindQuotaExhausted))
	assert.False(t, Is(wrapped, KindStartInPast))
	assert.NotNil(t, From(wrapped))
	assert.Nil(t, From(errors.New("plain")))
}

func TestOnField(t *testing.T) {
	base := New(KindValidation, "bad")
	moved := base.OnField("start_date")

	assert.Equal(t, "start_date", moved.Field)
	assert.Equal(t, NonFieldErrors, base.Field)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_card_number"`)))
	assert.True(t, IsDuplicate(errors.New("UNIQUE constraint failed: users.card_number")))
	assert.False(t, IsDuplicate(errors.New("connection refused")))
	assert.False(t, IsDuplicate(nil))
}
