package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultLimit is the response size accepted when callers pass no limit.
const DefaultLimit = 1000

var (
	// ErrTooLarge reports a body that exceeds the parse limit.
	ErrTooLarge = errors.New("response exceeds parse limit")
	// ErrMalformed reports a body that is not a JSON object.
	ErrMalformed = errors.New("malformed json object")
)

// Object is a decoded top-level JSON object.
type Object map[string]json.RawMessage

// Parse decodes body into an Object. A limit <= 0 uses DefaultLimit.
func Parse(body []byte, limit int) (Object, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(body) > limit {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(body), limit)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrMalformed)
	}
	var obj Object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		obj = Object{}
	}
	return obj, nil
}

// Has reports whether key is present and not null.
func (o Object) Has(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

// String returns the string value at key. ok is false when the key is
// missing, null, or not a string.
func (o Object) String(key string) (string, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}

// Int returns the integral number at key.
func (o Object) Int(key string) (int, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return 0, false
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, false
	}
	if value != math.Trunc(value) || value > math.MaxInt32 || value < math.MinInt32 {
		return 0, false
	}
	return int(value), true
}

// Uint8 returns the number at key when it fits in a byte.
func (o Object) Uint8(key string) (uint8, bool) {
	value, ok := o.Int(key)
	if !ok || value < 0 || value > math.MaxUint8 {
		return 0, false
	}
	return uint8(value), true
}

// Array returns the elements of the array at key.
func (o Object) Array(key string) ([]json.RawMessage, bool) {
	raw, ok := o[key]
	if !ok || isNull(raw) {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Objects returns the array at key decoded as objects. Any element that is not
// an object makes the whole field invalid.
func (o Object) Objects(key string) ([]Object, bool) {
	items, ok := o.Array(key)
	if !ok {
		return nil, false
	}
	out := make([]Object, 0, len(items))
	for _, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, false
		}
		var obj Object
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, false
		}
		out = append(out, obj)
	}
	return out, true
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
