package triage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Classification
	}{
		{
			name: "well formed",
			raw:  "Category: incident\nPriority: P0\nReasoning: Site is down",
			want: Classification{CategoryIncident, PriorityP0, "Site is down"},
		},
		{
			name: "case normalized values",
			raw:  "Category: BUG\nPriority: p2\nReasoning: checkout broken",
			want: Classification{CategoryBug, PriorityP2, "checkout broken"},
		},
		{
			name: "case insensitive labels",
			raw:  "category: feature\nPRIORITY: P3\nreasoning: new option",
			want: Classification{CategoryFeature, PriorityP3, "new option"},
		},
		{
			name: "surrounding whitespace and chatter",
			raw:  "Sure, here you go.\n   Category:   bug  \n\tPriority: P1\nReasoning: affects many users\nThanks!",
			want: Classification{CategoryBug, PriorityP1, "affects many users"},
		},
		{
			name: "value keeps later colons",
			raw:  "Reasoning: error: checkout fails",
			want: Classification{CategoryQuestion, PriorityP3, "error: checkout fails"},
		},
		{
			name: "invalid values keep defaults",
			raw:  "Category: outage\nPriority: P9\nReasoning: unsure",
			want: Classification{CategoryQuestion, PriorityP3, "unsure"},
		},
		{
			name: "first occurrence wins",
			raw:  "Category: bug\nCategory: feature\nPriority: P1\nPriority: P3\nReasoning: first\nReasoning: second",
			want: Classification{CategoryBug, PriorityP1, "first"},
		},
		{
			name: "oversized junk line does not hide later labels",
			raw:  strings.Repeat("x", 2<<20) + "\nCategory: bug\nPriority: P0\nReasoning: outage",
			want: Classification{CategoryBug, PriorityP0, "outage"},
		},
		{
			name: "crlf line endings",
			raw:  "Category: incident\r\nPriority: P1\r\nReasoning: db slow\r\n",
			want: Classification{CategoryIncident, PriorityP1, "db slow"},
		},
		{
			name: "first occurrence consumed even when invalid",
			raw:  "Priority: urgent\nPriority: P0",
			want: Classification{CategoryQuestion, PriorityP3, FallbackReasoning},
		},
		{
			name: "label must match exactly",
			raw:  "Category : bug\nCategories: feature\nThe Priority: P0",
			want: DefaultClassification(),
		},
		{
			name: "empty reasoning keeps fallback",
			raw:  "Category: bug\nReasoning:   ",
			want: Classification{CategoryBug, PriorityP3, FallbackReasoning},
		},
		{
			name: "empty reply",
			raw:  "",
			want: DefaultClassification(),
		},
		{
			name: "no labels",
			raw:  "I cannot help with that.\nPlease rephrase.",
			want: DefaultClassification(),
		},
		{
			name: "windows line endings",
			raw:  "Category: feature\r\nPriority: P3\r\nReasoning: dark mode\r\n",
			want: Classification{CategoryFeature, PriorityP3, "dark mode"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}

func TestParseAlwaysValid(t *testing.T) {
	inputs := []string{
		"Category:\nPriority:",
		"Category: \x00\x01\nPriority: ☃",
		":::\n:",
		"Category: incident; DROP TABLE tickets\nPriority: P0 P1",
	}
	for _, raw := range inputs {
		got := Parse(raw)
		assert.True(t, got.Category.Valid(), "category %q", got.Category)
		assert.True(t, got.Priority.Valid(), "priority %q", got.Priority)
	}
}

func TestPrioritySeverity(t *testing.T) {
	assert.Greater(t, PriorityP0.Severity(), PriorityP1.Severity())
	assert.Greater(t, PriorityP1.Severity(), PriorityP2.Severity())
	assert.Greater(t, PriorityP2.Severity(), PriorityP3.Severity())
	assert.True(t, PriorityP0.Urgent())
	assert.True(t, PriorityP1.Urgent())
	assert.False(t, PriorityP2.Urgent())
	assert.False(t, PriorityP3.Urgent())
}
