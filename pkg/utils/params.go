package utils

import (
	"encoding/json"
	"fmt"
	"math"
)

// GetMapField gets a field from an action parameter map and asserts its type.
func GetMapField[T any](m map[string]any, key string) (T, error) {
	var zero T
	value, exists := m[key]
	if !exists {
		return zero, fmt.Errorf("field '%s' not found in map", key)
	}
	if typedValue, ok := value.(T); ok {
		return typedValue, nil
	}
	return zero, fmt.Errorf("field '%s' expected type %T, got %T", key, zero, value)
}

// GetMapFieldOr gets a field with a default for missing or mistyped values.
func GetMapFieldOr[T any](m map[string]any, key string, defaultValue T) T {
	if value, err := GetMapField[T](m, key); err == nil {
		return value
	}
	return defaultValue
}

// GetIntOr reads an integer parameter. JSON decoding yields float64 and
// json.Number, so both are accepted alongside native ints. Values outside
// the int range fall back to defaultValue.
func GetIntOr(m map[string]any, key string, defaultValue int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		if v >= math.MinInt && v <= math.MaxInt {
			return int(v)
		}
	case float64:
		// float64(math.MaxInt) rounds up to 2^63, hence the strict upper bound.
		if v == math.Trunc(v) && v >= math.MinInt && v < math.MaxInt {
			return int(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
	}
	return defaultValue
}
