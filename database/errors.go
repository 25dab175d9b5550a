package database

import (
	"context"
	"errors"
	"strings"

	apperrors "panelcatalog/server/errors"
)

// classifyStoreError maps a raw driver error onto the engine's taxonomy.
// Timeouts and lock contention are retryable; constraint violations are
// not, they mean the caller asked for something invalid.
func classifyStoreError(err error, message string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTransientStoreError(message, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"):
		return apperrors.NewValidationError(message, err)
	case strings.Contains(msg, "foreign key constraint"):
		return apperrors.NewValidationError(message, err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "busy"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"):
		return apperrors.NewTransientStoreError(message, err)
	}

	return apperrors.NewTransientStoreError(message, err)
}
