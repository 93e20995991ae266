package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/config"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

type cli struct {
	projectDir string
	configPath string
}

// newCLI returns a CLI bound to a temporary project whose backends all use sqlite,
// so state persists across invocations.
func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tickets.Backend = config.BackendSQLite
	cfg.Notify.Backend = config.BackendSQLite
	cfg.State.Backend = config.BackendSQLite
	cfg.Workflow.Checkpoints = true
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, cfg.Save(path))
	return &cli{projectDir: dir, configPath: path}
}

func (c *cli) exec(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--offline", "--project-dir", c.projectDir, "--config", c.configPath}, args...)
	code = run(full, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunCommand(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "", "run", "Site is completely down!")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, ": completed")
	assert.Contains(t, out, "Priority: P0")
	assert.Contains(t, out, "Ticket: INC-1")
	assert.Contains(t, out, "Notified #alerts")
	assert.Contains(t, out, "Notified #bugs")

	assert.FileExists(t, filepath.Join(c.projectDir, config.DefaultSQLitePath))
}

func TestRunReadsPipedStdin(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "Can we add a dark mode option?\n", "run", "--channel", "#product")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Category: feature")
	assert.Contains(t, out, "Notified #product")
}

func TestRunRequiresText(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.exec(t, "   ", "run")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "request text is required")
}

func TestStatePersistsAcrossCommands(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "", "run", "--json", "The checkout button is not responding on mobile.")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"ticket_id": "BUG-1"`)

	code, out, _ = c.exec(t, "", "tickets", "search", "checkout")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "BUG-1")

	code, out, _ = c.exec(t, "", "tickets", "get", "BUG-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"priority": "P2"`)

	code, _, errOut := c.exec(t, "", "tickets", "get", "BUG-99")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	code, out, _ = c.exec(t, "", "history", "bugs")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "🎫 New BUG - P2")

	code, out, _ = c.exec(t, "", "snapshots", "--verify")
	require.Equal(t, 0, code, out)
	assert.Equal(t, 4, strings.Count(out, "✅"), out)
	assert.Contains(t, out, "completed")
}

func TestDemoCommand(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "", "demo", "--metrics")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Workflows processed: 3")
	assert.Contains(t, out, "Critical incidents: 1")
	assert.Contains(t, out, "High priority: 0")
	assert.Contains(t, out, `workflow_runs_total{status="completed"} 3`)
	assert.Contains(t, out, "All workflows completed successfully")
}

func TestCallCommand(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "", "call", "slack", "send_message", "--params", `{"channel":"#general","text":"hi"}`)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"success": true`)

	code, out, _ = c.exec(t, "", "call", "jira", "delete_ticket")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Unknown action: delete_ticket")

	code, _, errOut := c.exec(t, "", "call", "jira", "get_ticket", "--params", "{bad")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid --params JSON")
}

func TestSecretsSet(t *testing.T) {
	c := newCLI(t)
	t.Setenv(config.EnvSecretsPassword, "correct horse")

	code, out, _ := c.exec(t, "", "secrets", "set", "OPENAI_API_KEY", "sk-test")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Stored OPENAI_API_KEY")

	secrets, err := config.DecryptSecretsFile(c.projectDir, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", secrets["OPENAI_API_KEY"])

	// The secrets file is read back on the next command.
	code, _, _ = c.exec(t, "", "tickets", "search")
	assert.Equal(t, 0, code)
}

func TestVersionAndUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run([]string{"version"}, nil, &out, &errOut))
	assert.True(t, strings.HasPrefix(out.String(), "workflowctl dev"))

	assert.Equal(t, 1, run([]string{"frobnicate"}, nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestBadConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickets:\n  backend: carrier-pigeon\n"), 0o600))

	var out, errOut bytes.Buffer
	code := run([]string{"--offline", "--config", path, "tickets", "search"}, nil, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "config validation failed")
}

func TestInitCommand(t *testing.T) {
	c := newCLI(t)

	code, out, _ := c.exec(t, "", "init", "--write-config")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Initialized")
	assert.FileExists(t, filepath.Join(c.projectDir, utils.StateDir, utils.GuidelinesFile))
	assert.FileExists(t, filepath.Join(c.projectDir, utils.StateDir, "config.yaml"))

	// Guidelines are sent as a system message; the offline model ignores them.
	guidelines := filepath.Join(c.projectDir, utils.StateDir, utils.GuidelinesFile)
	require.NoError(t, os.WriteFile(guidelines, []byte("Checkout issues are P1."), 0o644))
	code, out, _ = c.exec(t, "", "run", "Can we add dark mode?")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Category: feature")
}
