package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// StateDir is the per-project directory for agent state, secrets and guidelines.
	StateDir = ".workflow-agent"

	// GuidelinesFile holds organization-specific triage guidance.
	GuidelinesFile = "TRIAGE.md"

	// GuidelinesTokenLimit caps the guidance added to every classification prompt.
	GuidelinesTokenLimit = 2000
	// GuidelinesCharLimit is the matching character cap (~4 chars per token).
	GuidelinesCharLimit = 8000
)

const guidelinesTemplate = `# Triage Guidelines

<!-- Add organization-specific triage rules here, for example: -->
<!-- "Anything mentioning payments or checkout is at least P1." -->
<!-- The text is sent to the model with every request. Maximum 2,000 tokens (≈8,000 characters). -->
`

const readmeTemplate = `# .workflow-agent

State for the workflow agent in this project.

- workflow.db: tickets, channel messages and workflow snapshots (sqlite backends)
- snapshots/: JSONL snapshot log (jsonl state backend)
- secrets.json.enc: provider API keys, encrypted with your password
- TRIAGE.md: extra triage rules sent to the model with every request
`

var htmlComment = regexp.MustCompile(`(?s)<!--.*?-->`)

// CreateStateDirectory creates the state directory with its README, a
// .gitignore that keeps the database and secrets out of version control, and
// an empty guidelines file. Existing files are left alone.
func CreateStateDirectory(projectDir string) (string, error) {
	dir := filepath.Join(projectDir, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", StateDir, err)
	}

	files := map[string]string{
		"README.md":    readmeTemplate,
		".gitignore":   "*.db\n*.db-*\nsecrets.json.enc\nsnapshots/\n",
		GuidelinesFile: guidelinesTemplate,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", name, err)
		}
	}
	return dir, nil
}

// LoadTriageGuidelines returns the guidelines text with comments and the
// template heading stripped. A missing or template-only file yields "".
func LoadTriageGuidelines(projectDir string) (string, error) {
	path := filepath.Join(projectDir, StateDir, GuidelinesFile)
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w (please check file permissions)", GuidelinesFile, err)
	}

	text := htmlComment.ReplaceAllString(string(content), "")
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "# Triage Guidelines"))
	if text == "" {
		return "", nil
	}

	if n := len(text); n > GuidelinesCharLimit {
		return "", fmt.Errorf("%s exceeds character limit of %d (current: %d)", GuidelinesFile, GuidelinesCharLimit, n)
	}
	if n := CountTokens(text); n > GuidelinesTokenLimit {
		return "", fmt.Errorf("%s exceeds token limit of %d (current: %d)", GuidelinesFile, GuidelinesTokenLimit, n)
	}
	return text, nil
}
