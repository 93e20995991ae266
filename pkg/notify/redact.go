package notify

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

const (
	// DefaultMaxMessageChars is the default maximum length for a channel message.
	DefaultMaxMessageChars = 4000

	// TruncationSuffix is appended to messages that exceed the max length.
	TruncationSuffix = " … [truncated]"

	redactionNote = " (Note: content redacted by scanner)"
)

// SecretScanner finds credentials in outgoing text.
type SecretScanner interface {
	// Scan returns redacted text and whether anything was replaced.
	Scan(ctx context.Context, text string) (redacted string, hadRedactions bool, err error)
}

// PatternScanner is a regex-based SecretScanner.
type PatternScanner struct {
	patterns []*regexp.Regexp
	timeout  time.Duration
}

// NewPatternScanner creates a scanner with the default credential patterns.
func NewPatternScanner(timeout time.Duration) *PatternScanner {
	return &PatternScanner{
		patterns: compileDefaultPatterns(),
		timeout:  timeout,
	}
}

func compileDefaultPatterns() []*regexp.Regexp {
	patterns := []string{
		`sk-ant-[A-Za-z0-9_-]{20,}`,
		`sk-proj-[A-Za-z0-9_-]{20,}`,
		`sk-[A-Za-z0-9]{32,}`,
		`AKIA[0-9A-Z]{16}`,
		`AIza[0-9A-Za-z_-]{35}`,
		`xox[abpr]-[A-Za-z0-9-]{10,}`,
		`gh[pousr]_[A-Za-z0-9]{36}`,
		`(?i)(?:api[_-]?key|secret|password)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{12,}['"]?`,
		`Bearer\s+[A-Za-z0-9_\-\.]{20,}`,
		`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Scan replaces every match with "[redacted]".
func (s *PatternScanner) Scan(ctx context.Context, text string) (string, bool, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	hadRedactions := false
	redacted := text
	for _, pattern := range s.patterns {
		if err := ctx.Err(); err != nil {
			return "", false, fmt.Errorf("scan interrupted: %w", err)
		}
		if pattern.MatchString(redacted) {
			hadRedactions = true
			redacted = pattern.ReplaceAllString(redacted, "[redacted]")
		}
	}
	return redacted, hadRedactions, nil
}

// RedactingNotifier truncates and scrubs text before handing it to the next notifier.
// A scanner failure is logged and the original text is sent.
type RedactingNotifier struct {
	next     Notifier
	scanner  SecretScanner
	logger   *logx.Logger
	maxChars int
}

// NewRedactingNotifier wraps next. maxChars <= 0 uses DefaultMaxMessageChars.
func NewRedactingNotifier(next Notifier, scanner SecretScanner, maxChars int) *RedactingNotifier {
	if maxChars <= 0 {
		maxChars = DefaultMaxMessageChars
	}
	return &RedactingNotifier{
		next:     next,
		scanner:  scanner,
		logger:   logx.NewLogger("notify"),
		maxChars: maxChars,
	}
}

// Send implements Notifier.
func (r *RedactingNotifier) Send(ctx context.Context, channel, text string) (*SendResult, error) {
	return r.next.Send(ctx, channel, r.prepare(ctx, text)) //nolint:wrapcheck // decorator passes errors through
}

// History implements Notifier.
func (r *RedactingNotifier) History(ctx context.Context, channel string, limit int) ([]Message, error) {
	return r.next.History(ctx, channel, limit) //nolint:wrapcheck // decorator passes errors through
}

func (r *RedactingNotifier) prepare(ctx context.Context, text string) string {
	if r.scanner != nil {
		redacted, hadRedactions, err := r.scanner.Scan(ctx, text)
		switch {
		case err != nil:
			r.logger.Error("Secret scanner failed: %v (using original text)", err)
		case hadRedactions:
			text = redacted
			if !strings.HasSuffix(text, redactionNote) {
				text += redactionNote
			}
		}
	}

	runes := []rune(text)
	if len(runes) > r.maxChars {
		suffix := []rune(TruncationSuffix)
		keep := max(r.maxChars-len(suffix), 0)
		text = string(runes[:keep]) + TruncationSuffix
		r.logger.Debug("Truncated message (original: %d chars, max: %d)", len(runes), r.maxChars)
	}
	return text
}
