// Package badge normalizes the flag encodings the server uses for
// conversation badges.
package badge

import (
	"encoding/json"
	"strings"
)

// Badge names.
const (
	Offer   = "hasOffer"
	NewBank = "hasNewBank"
)

// Truthy reports whether v is one of the accepted truthy encodings: true,
// "true", 1 or "1". Everything else, including nil, is false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return truthyString(x)
	case int:
		return x == 1
	case int64:
		return x == 1
	case float64:
		return x == 1
	case json.Number:
		return truthyString(x.String())
	case json.RawMessage:
		return truthyRaw(x)
	case []byte:
		return truthyRaw(x)
	default:
		return false
	}
}

func truthyString(s string) bool {
	s = strings.TrimSpace(s)
	return s == "true" || s == "1"
}

func truthyRaw(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return Truthy(v)
}

// Present reports whether a raw JSON field was sent at all. An explicit null
// counts as present (and false).
func Present(raw json.RawMessage) bool {
	return len(raw) > 0
}
