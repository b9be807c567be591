package core

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherly/internal/types"
)

type validatedPayload struct {
	Title    string `json:"title" validate:"required,max=10"`
	Channel  string `json:"channel" validate:"omitempty,oneof=email sms push in_app"`
	MaxDaily int    `json:"max_daily_notifications" validate:"gte=0"`
}

func newCoreValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateStructPasses(t *testing.T) {
	v := newCoreValidator(t)
	err := v.ValidateStruct(validatedPayload{Title: "Party", Channel: "email"})
	assert.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	v := newCoreValidator(t)
	err := v.ValidateStruct(validatedPayload{Channel: "telegram", MaxDaily: -1})

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationFailed, appErr.Code)

	// Keys come from the json tags, not the Go field names.
	assert.Contains(t, appErr.Details, "title")
	assert.Contains(t, appErr.Details, "channel")
	assert.Contains(t, appErr.Details, "max_daily_notifications")
	assert.NotContains(t, appErr.Details, "Title")
}

func TestValidateStructMessages(t *testing.T) {
	v := newCoreValidator(t)

	err := v.ValidateStruct(validatedPayload{Title: "much too long for the cap"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["title"], "10")

	err = v.ValidateStruct(validatedPayload{Title: "ok", Channel: "fax"})
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Details["channel"], "one of")
}
