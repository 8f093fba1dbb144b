package service

import (
	"strings"
	"time"

	"sprintboard/internal/apperr"
)

const dateOnly = "2006-01-02"

// parseDate accepts RFC 3339 timestamps and bare calendar dates (UTC midnight).
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.Validation(field + " is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validation("invalid " + field + ": expected YYYY-MM-DD or RFC 3339")
}

// parseOptionalDate maps nil and "" to no date.
func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// normalizeID maps nil and "" to no reference.
func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
