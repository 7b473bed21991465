package records

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// fields is a decoded JSON object whose members are read leniently.
type fields map[string]json.RawMessage

func decodeFields(data []byte) fields {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return fields{}
	}
	return f
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func (f fields) first(keys ...string) json.RawMessage {
	for _, k := range keys {
		if raw, ok := f[k]; ok && !isNull(raw) {
			return raw
		}
	}
	return nil
}

// id reads a string or numeric identifier.
func (f fields) id(keys ...string) string {
	raw := f.first(keys...)
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (f fields) str(keys ...string) string {
	if v := f.optional(keys...); v != nil {
		return *v
	}
	return ""
}

// optional reads a string, or an object carrying a name/title/label member.
// Blank values decode as absent.
func (f fields) optional(keys ...string) *string {
	raw := f.first(keys...)
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		nested := decodeFields(raw)
		if len(nested) == 0 {
			return nil
		}
		s = nested.str("name", "title", "label")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (f fields) amount(keys ...string) decimal.NullDecimal {
	raw := f.first(keys...)
	if raw == nil {
		return decimal.NullDecimal{}
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestamp parses RFC3339 and zone-less layouts; zone-less values are read
// in time.Local. Unparseable values decode as the zero time.
func (f fields) timestamp(keys ...string) time.Time {
	raw := f.first(keys...)
	if raw == nil {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var millis int64
		if err := json.Unmarshal(raw, &millis); err == nil {
			return time.UnixMilli(millis)
		}
		return time.Time{}
	}
	return ParseTime(s)
}

// ParseTime parses the timestamp layouts the institution API emits.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (f fields) object(keys ...string) fields {
	raw := f.first(keys...)
	if raw == nil {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if raw[0] != '{' {
		return nil
	}
	return decodeFields(raw)
}
