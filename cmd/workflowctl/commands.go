package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/config"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/httpapi"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/metrics"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/notify"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/ticket"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/version"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/workflow"
)

const defaultPrometheusURL = "http://localhost:9090"

// demoRequests are the canonical requests exercised by `demo`.
//
//nolint:gochecknoglobals // fixed demo data
var demoRequests = []struct {
	title string
	text  string
}{
	{"Critical Incident", "Site is completely down! Getting 500 errors on all pages. Customers cannot access anything."},
	{"Feature Request", "Can we add a dark mode option to the settings page?"},
	{"Bug Report", "The checkout button is not responding when I click it on mobile."},
}

func newInitCmd(g *globalFlags) *cobra.Command {
	var writeConfig bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the project state directory",
		Long:  "Create " + utils.StateDir + " with a README, a .gitignore and a " + utils.GuidelinesFile + " template for triage rules.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := utils.CreateStateDirectory(g.projectDir)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "📁 Initialized %s\n", dir)
			if writeConfig {
				path := filepath.Join(dir, "config.yaml")
				if err := config.Default().Save(path); err != nil {
					return err //nolint:wrapcheck // already descriptive
				}
				fmt.Fprintf(out, "📝 Wrote default config to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "Also write a config.yaml with every default")
	return cmd
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var channel string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run [request text]",
		Short: "Run one workflow for a request",
		Long:  "Triage the request, create a ticket and notify channels. Without arguments the request is read from piped stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := requestText(g.stdin, args)
			if err != nil {
				return err
			}
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			run := k.Orchestrator.Run(cmd.Context(), text, channel)
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), run); err != nil {
					return err
				}
			} else {
				printRun(cmd.OutOrStdout(), run)
			}
			if !run.Succeeded() {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Channel for non-urgent notifications (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the workflow record as JSON")
	return cmd
}

// requestText joins the arguments, or reads stdin when it is not a terminal.
func requestText(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if stdin == nil || isTerminal(stdin) {
		return "", fmt.Errorf("request text is required")
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("request text is required")
	}
	return text, nil
}

func newDemoCmd(g *globalFlags) *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the three sample requests and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			out := cmd.OutOrStdout()
			rule := strings.Repeat("=", 60)
			fmt.Fprintln(out, "ENTERPRISE WORKFLOW AUTOMATION DEMO")
			fmt.Fprintln(out, rule)

			var critical, high, failed int
			for i, req := range demoRequests {
				fmt.Fprintf(out, "\nTEST CASE %d: %s\n", i+1, req.title)
				run := k.Orchestrator.Run(cmd.Context(), req.text, "")
				printRun(out, run)
				if !run.Succeeded() {
					failed++
				}
				if run.Classification == nil {
					continue
				}
				switch run.Classification.Priority {
				case triage.PriorityP0:
					critical++
				case triage.PriorityP1:
					high++
				}
			}

			fmt.Fprintf(out, "\n%s\nSUMMARY\n%s\n", rule, rule)
			fmt.Fprintf(out, "Workflows processed: %d\n", len(demoRequests))
			fmt.Fprintf(out, "Critical incidents: %d\n", critical)
			fmt.Fprintf(out, "High priority: %d\n", high)

			if showMetrics {
				fmt.Fprintln(out)
				if err := metrics.WriteText(out, k.Metrics); err != nil {
					return err //nolint:wrapcheck // already descriptive
				}
			}
			if failed > 0 {
				fmt.Fprintf(out, "\n❌ %d workflow(s) failed\n", failed)
				return errReported
			}
			fmt.Fprintln(out, "\n✅ All workflows completed successfully!")
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print the metrics exposition after the run")
	return cmd
}

func newTicketsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect the ticket registry",
	}

	var limit int
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search tickets by title or description",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			found, err := k.Tickets.Search(cmd.Context(), query, limit)
			if err != nil {
				return err //nolint:wrapcheck // registry errors carry context
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No tickets found")
				return nil
			}
			for _, t := range found {
				printTicketLine(out, t)
			}
			return nil
		},
	}
	search.Flags().IntVar(&limit, "limit", ticket.DefaultSearchLimit, "Maximum number of tickets")

	get := &cobra.Command{
		Use:   "get <ticket-id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			t, err := k.Tickets.Get(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // registry errors carry context
			}
			return writeJSON(cmd.OutOrStdout(), t)
		},
	}

	cmd.AddCommand(search, get)
	return cmd
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [channel]",
		Short: "Show recent messages posted to a channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			channel := notify.DefaultChannel
			if len(args) == 1 {
				channel = args[0]
				if !strings.HasPrefix(channel, "#") {
					channel = "#" + channel
				}
			}
			msgs, err := k.Notifier.History(cmd.Context(), channel, limit)
			if err != nil {
				return err //nolint:wrapcheck // notifier errors carry context
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintf(out, "No messages in %s\n", channel)
				return nil
			}
			for i := range msgs {
				m := &msgs[i]
				fmt.Fprintf(out, "[%s] %s %s\n%s\n\n", m.Timestamp.Format("2006-01-02 15:04:05"), m.Channel, m.MessageID, m.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", notify.DefaultHistoryLimit, "Maximum number of messages")
	return cmd
}

func newSnapshotsCmd(g *globalFlags) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "snapshots [workflow-id]",
		Short: "List persisted workflow snapshots",
		Long:  "List the append-only snapshot log, for one workflow or for all of them.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			snaps, err := k.State.List(cmd.Context(), id)
			if err != nil {
				return err //nolint:wrapcheck // store errors carry context
			}
			out := cmd.OutOrStdout()
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots found")
				return nil
			}
			bad := 0
			for i := range snaps {
				s := &snaps[i]
				mark := ""
				if verify {
					mark = " ✅"
					if err := s.Verify(); err != nil {
						mark = " ❌ " + err.Error()
						bad++
					}
				}
				fmt.Fprintf(out, "%s  %-8s  %-15s  %s  %.12s%s\n",
					s.Timestamp.Format("2006-01-02 15:04:05.000"), s.WorkflowID, s.Status, s.Agent, s.Digest, mark)
			}
			if bad > 0 {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Check each snapshot digest")
	return cmd
}

func newCallCmd(g *globalFlags) *cobra.Command {
	var rawParams string
	cmd := &cobra.Command{
		Use:   "call <server> <action>",
		Short: "Invoke a tool action directly",
		Example: `  workflowctl call jira search_tickets --params '{"query":"checkout"}'
  workflowctl call slack send_message --params '{"channel":"#general","text":"hello"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{}
			if rawParams != "" {
				if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
					return fmt.Errorf("invalid --params JSON: %w", err)
				}
			}
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			result := k.Actions.Call(cmd.Context(), args[0], args[1], params)
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rawParams, "params", "", "Action parameters as a JSON object")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := g.openKernel(cmd)
			if err != nil {
				return err
			}
			defer closeKernel(k, cmd.ErrOrStderr())

			addr := k.Config.Server.Listen
			if listen != "" {
				addr = listen
			}
			server := httpapi.NewServer(httpapi.Deps{
				Runner:    k.Orchestrator,
				Tickets:   k.Tickets,
				Notifier:  k.Notifier,
				Snapshots: k.State,
				Actions:   k.Actions,
				Gatherer:  k.Metrics,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 Serving on http://%s (Ctrl-C to stop)\n", addr)
			return server.ListenAndServe(cmd.Context(), addr, k.Config.Server.ShutdownTimeout) //nolint:wrapcheck // already descriptive
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	return cmd
}

func newSecretsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted project secrets file",
	}

	set := &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret such as ANTHROPIC_API_KEY",
		Long:  "Store a secret in the encrypted secrets file. The value is prompted for when omitted; the password comes from " + config.EnvSecretsPassword + " or a prompt.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			errOut := cmd.ErrOrStderr()
			name := args[0]

			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				var err error
				if value, err = readPassword(g.stdin, errOut, name+": "); err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("secret value for %s is empty", name)
			}

			password := os.Getenv(config.EnvSecretsPassword)
			if password == "" {
				var err error
				if password, err = readPassword(g.stdin, errOut, "Secrets password: "); err != nil {
					return err
				}
			}
			if err := config.SetSecretInFile(g.projectDir, password, name, value); err != nil {
				return fmt.Errorf("failed to store secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🔐 Stored %s in %s\n", name, config.SecretsPath(g.projectDir))
			return nil
		},
	}

	cmd.AddCommand(set)
	return cmd
}

func newMetricsCmd(_ *globalFlags) *cobra.Command {
	var prometheusURL string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Summarize workflow activity from Prometheus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qs, err := metrics.NewQueryService(prometheusURL)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			summary, err := qs.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to query %s: %w", prometheusURL, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Runs by status:     %v\n", summary.RunsByStatus)
			fmt.Fprintf(out, "Critical incidents: %d\n", summary.Critical())
			fmt.Fprintf(out, "High priority:      %d\n", summary.High())
			fmt.Fprintf(out, "Tokens:             %d prompt / %d completion\n", summary.PromptTokens, summary.CompletionTokens)
			fmt.Fprintf(out, "Failed notices:     %d\n", summary.FailedNotifyCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus-url", defaultPrometheusURL, "Prometheus server scraping `workflowctl serve`")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "workflowctl %s\n", version.String())
		},
	}
}

func printRun(w io.Writer, run *workflow.Run) {
	fmt.Fprintf(w, "Workflow %s: %s\n", run.ID, run.Status)
	if c := run.Classification; c != nil {
		fmt.Fprintf(w, "  Category: %s\n  Priority: %s\n  Reasoning: %s\n", c.Category, c.Priority, c.Reasoning)
	}
	if run.Ticket != nil {
		fmt.Fprintf(w, "  Ticket: %s %s\n", run.Ticket.ID, run.TicketURL)
	}
	for _, n := range run.Notifications {
		if n.Success {
			fmt.Fprintf(w, "  Notified %s (%s)\n", n.Channel, n.MessageID)
		} else {
			fmt.Fprintf(w, "  ⚠️  Notify %s failed: %s\n", n.Channel, n.Error)
		}
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  ❌ %s failed: %s\n", run.FailedStage, run.Error)
	}
}

func printTicketLine(w io.Writer, t *ticket.Ticket) {
	fmt.Fprintf(w, "%-8s  %-3s  %-8s  %-6s  %s\n", t.ID, t.Priority, t.Type, t.Status, t.Title)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
