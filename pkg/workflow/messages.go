package workflow

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// Display limits, in runes.
const (
	DefaultTitleMaxRunes = 100
	DefaultIssueMaxRunes = 200
)

// TicketTitle is the request text cut to maxRunes.
func TicketTitle(userInput string, maxRunes int) string {
	return utils.TruncateRunes(userInput, maxRunes)
}

// TicketType derives the ticket type from a category: "bug" becomes "Bug".
func TicketType(category triage.Category) string {
	s := strings.ToLower(string(category))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TicketDescription embeds the request, its classification and the workflow id.
func TicketDescription(workflowID, userInput string, c triage.Classification) string {
	return fmt.Sprintf(`User Report: %s

Classification:
- Category: %s
- Priority: %s
- Reasoning: %s

Workflow ID: %s`, userInput, c.Category, c.Priority, c.Reasoning, workflowID)
}

// NotificationText is the channel message announcing a new ticket.
func NotificationText(r *Run, issueMaxRunes int) string {
	c := r.Classification
	return fmt.Sprintf(`🎫 New %s - %s

Issue: %s

Jira Ticket: %s
URL: %s

Workflow ID: %s`,
		strings.ToUpper(string(c.Category)), c.Priority,
		utils.TruncateRunes(r.UserInput, issueMaxRunes),
		r.TicketID(), r.TicketURL,
		r.ID)
}
