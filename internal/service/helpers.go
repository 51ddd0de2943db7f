package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// actorFromContext extracts user_id set by the auth middleware as uuid.UUID
func actorFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value("user_id").(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, response.NewAppError(response.ErrCodeUnauthorized, "User ID not found in context", "")
	}
	return userID, nil
}

// roleFromContext returns the role claim of the token, if the token had one
func roleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value("user_role").(string)
	return role, ok && role != ""
}

// lookupError maps a repository read error onto NOT_FOUND or INTERNAL_ERROR
func lookupError(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewAppError(response.ErrCodeNotFound, notFoundMsg, "")
	}
	var appErr *response.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return response.NewAppError(response.ErrCodeInternal, internalMsg, err.Error())
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// writeError maps a repository write error, treating version mismatches as CONFLICT
func writeError(err error, internalMsg string) error {
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, repository.ErrVersionConflict):
		return response.NewAppError(response.ErrCodeConflict, "The record was modified by someone else, reload and try again", "version")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return response.NewAppError(response.ErrCodeNotFound, "Record not found", "")
	}
	return response.NewAppError(response.ErrCodeInternal, internalMsg, err.Error())
}

// checkVersion rejects a request made against a stale copy
func checkVersion(requested *int, current int) error {
	if requested != nil && *requested != current {
		return response.NewAppError(response.ErrCodeConflict, "The record was modified by someone else, reload and try again", "version")
	}
	return nil
}

func validationError(message, field string) error {
	return response.NewAppError(response.ErrCodeValidation, message, field)
}

// parseDate parses an optional YYYY-MM-DD value
func parseDate(value *string, field string) (*datatypes.Date, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, *value)
	if err != nil {
		return nil, validationError("Invalid date, expected YYYY-MM-DD", field)
	}
	d := datatypes.Date(t)
	return &d, nil
}

func formatDate(d *datatypes.Date) *string {
	if d == nil {
		return nil
	}
	s := time.Time(*d).Format(dto.DateLayout)
	return &s
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func checkNonNegative(v decimal.NullDecimal, field string) error {
	if v.Valid && v.Decimal.IsNegative() {
		return validationError("Value must not be negative", field)
	}
	return nil
}

func uuidPtrString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
