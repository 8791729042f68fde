package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
)

func newPgError(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "Nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "Context deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: true,
		},
		{
			name:     "Wrapped context deadline exceeded",
			err:      fmt.Errorf("operation failed: %w", context.DeadlineExceeded),
			expected: true,
		},
		{
			name:     "GORM record not found",
			err:      gorm.ErrRecordNotFound,
			expected: false,
		},
		{
			name:     "Connection exception class 08",
			err:      newPgError("08006", ""),
			expected: true,
		},
		{
			name:     "Insufficient resources class 53",
			err:      newPgError("53300", ""),
			expected: true,
		},
		{
			name:     "Deadlock detected",
			err:      newPgError("40P01", ""),
			expected: true,
		},
		{
			name:     "Serialization failure",
			err:      newPgError("40001", ""),
			expected: true,
		},
		{
			name:     "Unique violation is permanent",
			err:      newPgError("23505", "idx_onboardings_deal_id"),
			expected: false,
		},
		{
			name:     "Connection refused string match",
			err:      errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			expected: true,
		},
		{
			name:     "Broken pipe string match",
			err:      errors.New("write: broken pipe"),
			expected: true,
		},
		{
			name:     "Plain application error",
			err:      errors.New("something else entirely"),
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestCheckConstraintViolation(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "Nil error",
			err:      nil,
			expected: nil,
		},
		{
			name:     "Record not found maps to ErrNotFound",
			err:      gorm.ErrRecordNotFound,
			expected: apperrors.ErrNotFound,
		},
		{
			name:     "Unique violation maps to ErrDuplicate",
			err:      newPgError("23505", "idx_onboardings_deal_id"),
			expected: apperrors.ErrDuplicate,
		},
		{
			name:     "Foreign key violation maps to ErrBadRequest",
			err:      newPgError("23503", "fk_onboarding_technicians"),
			expected: apperrors.ErrBadRequest,
		},
		{
			name:     "Not null violation maps to ErrBadRequest",
			err:      newPgError("23502", ""),
			expected: apperrors.ErrBadRequest,
		},
		{
			name:     "Deadlock maps to ErrDatabase",
			err:      newPgError("40P01", ""),
			expected: apperrors.ErrDatabase,
		},
		{
			name:     "Unknown pg code maps to ErrDatabase",
			err:      newPgError("P0001", ""),
			expected: apperrors.ErrDatabase,
		},
		{
			name:     "Generic error maps to ErrDatabase",
			err:      errors.New("boom"),
			expected: apperrors.ErrDatabase,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := checkConstraintViolation(tc.err)
			if tc.expected == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tc.expected)
		})
	}
}
