// Package forms normalises and validates user input before it reaches the
// record store.
package forms

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/monitaro/pjmanager/internal/errors"
)

// MsgRequired is reported for every missing mandatory field.
const MsgRequired = "必須項目です"

// MsgInvalidDate is reported for dates that are neither yyyy-mm-dd nor RFC3339.
const MsgInvalidDate = "日付の形式が正しくありません"

// DateLayout is the storage format of every date field.
const DateLayout = "2006-01-02"

// Errors collects field-level validation messages.
type Errors map[string]string

// Require records MsgRequired for each blank value.
func (e Errors) Require(values map[string]string) {
	for field, v := range values {
		if strings.TrimSpace(v) == "" {
			e[field] = MsgRequired
		}
	}
}

// Add records msg for field unless field already has a message.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Err returns a validation ServiceError, or nil when nothing was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return apperrors.Validation(e)
}

// Number is a nullable numeric input. It accepts a JSON number or a string;
// blank, non-numeric, NaN and infinite values decode as null.
type Number struct {
	Value *float64
}

// NewNumber wraps v.
func NewNumber(v float64) Number {
	return Number{Value: &v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	n.Value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}
	n.Value = ParseNumber(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// ParseNumber parses raw leniently; see Number.
func ParseNumber(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NullIfEmpty returns nil for a nil or blank string.
func NullIfEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// NormalizeDate rewrites *v to yyyy-mm-dd. Blank becomes nil. Values in any
// other format are reported on errs under field and left untouched.
func NormalizeDate(errs Errors, field string, v **string) {
	if *v == nil {
		return
	}
	raw := strings.TrimSpace(**v)
	if raw == "" {
		*v = nil
		return
	}
	out, ok := ParseDate(raw)
	if !ok {
		errs.Add(field, MsgInvalidDate)
		return
	}
	*v = &out
}

// ParseDate accepts yyyy-mm-dd or RFC3339 and returns the yyyy-mm-dd form.
func ParseDate(raw string) (string, bool) {
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t.Format(DateLayout), true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(DateLayout), true
	}
	return "", false
}
