package utils

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))

	short := CountTokens("Site is down")
	long := CountTokens(strings.Repeat("Site is down. ", 50))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}

func TestNilCounterFallsBack(t *testing.T) {
	var tc *TokenCounter
	assert.Equal(t, 3, tc.CountTokens("abcdefghijkl"))
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello"},
		{"multibyte", "héllo wörld", 7, "héllo w"},
		{"zero", "hello", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.in, tt.max))
		})
	}
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "alerts", SanitizeToken("#alerts"))
	assert.Equal(t, "team-ops-db", SanitizeToken("Team Ops/DB"))
	assert.Equal(t, "unnamed", SanitizeToken("#"))
}

func TestGetIntOr(t *testing.T) {
	params := map[string]any{
		"int":    3,
		"float":  float64(7),
		"frac":   2.5,
		"number": json.Number("12"),
		"string": "9",
	}
	assert.Equal(t, 3, GetIntOr(params, "int", 10))
	assert.Equal(t, 7, GetIntOr(params, "float", 10))
	assert.Equal(t, 10, GetIntOr(params, "frac", 10))
	assert.Equal(t, 12, GetIntOr(params, "number", 10))
	assert.Equal(t, 10, GetIntOr(params, "string", 10))
	assert.Equal(t, 10, GetIntOr(params, "missing", 10))
}

func TestGetIntOrOutOfRange(t *testing.T) {
	params := map[string]any{
		"huge":     1e300,
		"tiny":     -1e300,
		"inf":      math.Inf(1),
		"nan":      math.NaN(),
		"pow63":    math.Exp2(63),
		"negpow63": -math.Exp2(63),
		"overflow": json.Number("99999999999999999999"),
	}
	assert.Equal(t, 10, GetIntOr(params, "huge", 10))
	assert.Equal(t, 10, GetIntOr(params, "tiny", 10))
	assert.Equal(t, 10, GetIntOr(params, "inf", 10))
	assert.Equal(t, 10, GetIntOr(params, "nan", 10))
	assert.Equal(t, 10, GetIntOr(params, "pow63", 10))
	assert.Equal(t, math.MinInt, GetIntOr(params, "negpow63", 10))
	assert.Equal(t, 10, GetIntOr(params, "overflow", 10))
}

func TestGetMapFieldOr(t *testing.T) {
	params := map[string]any{"query": "checkout", "limit": "x"}
	assert.Equal(t, "checkout", GetMapFieldOr(params, "query", ""))
	assert.Equal(t, "#general", GetMapFieldOr(params, "channel", "#general"))

	_, err := GetMapField[int](params, "limit")
	assert.Error(t, err)
}
