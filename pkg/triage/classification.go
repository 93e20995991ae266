// Package triage classifies free-text requests into a category and priority
// by prompting a text-generation client and parsing its reply defensively.
package triage

import (
	"strings"
)

// Category is the kind of request.
type Category string

// Categories.
const (
	CategoryBug      Category = "bug"
	CategoryFeature  Category = "feature"
	CategoryQuestion Category = "question"
	CategoryIncident Category = "incident"
)

// Priority is the request severity; P0 is the most severe.
type Priority string

// Priorities.
const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// FallbackReasoning is used when the reply carries no usable reasoning line.
const FallbackReasoning = "Could not parse response"

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryBug, CategoryFeature, CategoryQuestion, CategoryIncident:
		return true
	}
	return false
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	}
	return false
}

// Severity ranks priorities; higher is more severe. Unknown priorities rank lowest.
func (p Priority) Severity() int {
	switch p {
	case PriorityP0:
		return 3
	case PriorityP1:
		return 2
	case PriorityP2:
		return 1
	default:
		return 0
	}
}

// Urgent reports whether p is P0 or P1.
func (p Priority) Urgent() bool {
	return p == PriorityP0 || p == PriorityP1
}

// Classification is the structured result of triage.
type Classification struct {
	Category  Category `json:"category"`
	Priority  Priority `json:"priority"`
	Reasoning string   `json:"reasoning"`
}

// DefaultClassification is returned for unparseable replies.
func DefaultClassification() Classification {
	return Classification{
		Category:  CategoryQuestion,
		Priority:  PriorityP3,
		Reasoning: FallbackReasoning,
	}
}

// Parse extracts a Classification from a model reply. It never fails: lines
// are matched against the Category/Priority/Reasoning labels ignoring case,
// only the first line carrying each label is considered, and anything missing
// or outside the allowed values keeps its default.
func Parse(raw string) Classification {
	result := DefaultClassification()
	var seenCategory, seenPriority, seenReasoning bool

	for _, line := range strings.Split(raw, "\n") {
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		switch label {
		case "category":
			if seenCategory {
				continue
			}
			seenCategory = true
			if c := Category(strings.ToLower(value)); c.Valid() {
				result.Category = c
			}
		case "priority":
			if seenPriority {
				continue
			}
			seenPriority = true
			if p := Priority(strings.ToUpper(value)); p.Valid() {
				result.Priority = p
			}
		case "reasoning":
			if seenReasoning {
				continue
			}
			seenReasoning = true
			if value != "" {
				result.Reasoning = value
			}
		}
	}
	return result
}

// splitLabel returns the lower-cased label and trimmed value of a "Label: value" line.
func splitLabel(line string) (label, value string, ok bool) {
	line = strings.TrimSpace(line)
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	label = strings.ToLower(line[:idx])
	switch label {
	case "category", "priority", "reasoning":
		return label, strings.TrimSpace(line[idx+1:]), true
	}
	return "", "", false
}
