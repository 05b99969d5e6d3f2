// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/g4chat/internal/api"
	"github.com/jeranaias/g4chat/internal/chat"
	"github.com/jeranaias/g4chat/internal/session"
	"github.com/jeranaias/g4chat/internal/storage"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"validation", NewValidationError("session", "", "required"), ExitUsageError},
		{"missing argument", ErrMissingArgument("message", "g4chat send hi"), ExitUsageError},
		{"tty", &TTYRequiredError{Operation: "pick"}, ExitUsageError},
		{"confirmation", fmt.Errorf("%w (stdin is not a terminal)", ErrConfirmationRequired), ExitUsageError},
		{"turn in flight", session.ErrTurnInFlight, ExitUsageError},
		{"empty message", chat.ErrEmptyMessage, ExitUsageError},
		{"too long", chat.ErrMessageTooLong, ExitUsageError},
		{"bad request", fmt.Errorf("rename: %w", api.ErrBadRequest), ExitUsageError},
		{"not configured", api.ErrNotConfigured, ExitConfigError},
		{"unauthorized", fmt.Errorf("list: %w", api.ErrUnauthorized), ExitAuthError},
		{"forbidden", api.ErrForbidden, ExitAuthError},
		{"no token", storage.ErrNoToken, ExitAuthError},
		{"not found", api.ErrNotFound, ExitNotFoundError},
		{"message not found", chat.ErrMessageNotFound, ExitNotFoundError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewCommandError("sessions", "rename", "could not save", inner)
	assert.Equal(t, "sessions rename failed: could not save: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Field: "status", Value: "gone", Reason: "unknown status", Example: "--status archived"}
	assert.Equal(t, "invalid status: unknown status (got: gone)\nExample: --status archived", err.Error())
}

func TestDisplayError_Text(t *testing.T) {
	ForceColorsEnabled(false)
	var buf bytes.Buffer
	DisplayError(&buf, errors.New("boom"), false)
	assert.Equal(t, "[ERROR] boom\n", buf.String())
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, NewValidationError("title", "", "must not be empty"), true)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "validation_error", out["error_type"])
	assert.Equal(t, "title", out["field"])
	assert.EqualValues(t, ExitUsageError, out["exit_code"])
}

func TestDisplayError_Nil(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, nil, true)
	assert.Empty(t, buf.String())
}
