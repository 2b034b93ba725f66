package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

// RowResult is the per-item outcome of a bulk create.
type RowResult[T any] struct {
	Success bool   `json:"success"`
	Data    *T     `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// IsDuplicateKeyError reports a unique constraint violation on MySQL or sqlite.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp accepts RFC3339 or a bare YYYY-MM-DD, the latter taken as
// midnight in the application timezone. Empty input yields nil.
func parseTimestamp(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", v, config.Location()); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.ParseInLocation(analysis.DayLayout, v, config.Location()); err == nil {
		t = t.UTC()
		return &t, nil
	}
	return nil, utils.NewFieldError(field, "invalid date %q", v)
}

// parseCivilDate parses a YYYY-MM-DD calendar date. Empty input yields nil.
func parseCivilDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := analysis.ParseDate(strings.TrimSpace(*s))
	if err != nil {
		return nil, utils.NewFieldError(field, "invalid date %q", *s)
	}
	return &t, nil
}

// today is the current civil date in the application timezone.
func today() time.Time {
	return analysis.CivilDate(config.Now())
}

func normalizeEmail(field string, email *string) (*string, error) {
	if email == nil || strings.TrimSpace(*email) == "" {
		return nil, nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if !utils.IsValidEmail(v) {
		return nil, utils.NewFieldError(field, "invalid email address")
	}
	return &v, nil
}

func normalizePhone(field string, phone *string) (*string, error) {
	if phone == nil || strings.TrimSpace(*phone) == "" {
		return nil, nil
	}
	v, err := utils.NormalizePhone(*phone)
	if err != nil {
		return nil, utils.NewFieldError(field, "invalid phone number")
	}
	return &v, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
