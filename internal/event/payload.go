package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Payload is the event-specific object extracted from an inbound envelope
type Payload map[string]interface{}

// Has reports whether key is present and not null
func (p Payload) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// String returns the textual form of a field, empty when missing
func (p Payload) String(key string) string {
	return toString(p[key])
}

// Float returns a field as a number. Numeric strings are accepted.
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatNumber renders a number without trailing zeros
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
