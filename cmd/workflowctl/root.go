package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/DataNeuron/enterpirse-workflow-agent/internal/kernel"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/config"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/persistence"
	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/utils"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	stdin      io.Reader
	configPath string
	projectDir string
	debug      bool
	offline    bool
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	g := &globalFlags{stdin: stdin}

	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Enterprise workflow automation agent",
		Long:          "Classify requests, create tickets and notify channels, from the shell or over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if g.debug {
				logx.SetDebug(true)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to the YAML config file")
	pf.StringVar(&g.projectDir, "project-dir", ".", "Directory holding the .workflow-agent state")
	pf.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&g.offline, "offline", false, "Classify with the built-in keyword model instead of a hosted provider")

	root.AddCommand(
		newInitCmd(g),
		newRunCmd(g),
		newDemoCmd(g),
		newTicketsCmd(g),
		newHistoryCmd(g),
		newSnapshotsCmd(g),
		newCallCmd(g),
		newServeCmd(g),
		newSecretsCmd(g),
		newMetricsCmd(g),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config and resolves relative state paths against the project dir.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	if cfg.Storage.SQLitePath != persistence.MemoryPath {
		cfg.Storage.SQLitePath = g.resolve(cfg.Storage.SQLitePath)
	}
	cfg.State.JSONLDir = g.resolve(cfg.State.JSONLDir)
	return cfg, nil
}

func (g *globalFlags) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(g.projectDir, path)
}

// loadSecrets decrypts the project secrets file when one exists. The password
// comes from the environment or, on a terminal, from a prompt.
func (g *globalFlags) loadSecrets(errOut io.Writer) error {
	if !config.SecretsFileExists(g.projectDir) {
		return nil
	}
	password := os.Getenv(config.EnvSecretsPassword)
	if password == "" {
		if !isTerminal(g.stdin) {
			return nil
		}
		var err error
		if password, err = readPassword(g.stdin, errOut, "Secrets password: "); err != nil {
			return err
		}
	}
	if err := config.LoadSecrets(g.projectDir, password); err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}
	return nil
}

// openKernel builds the services for a command; the caller must Close it.
func (g *globalFlags) openKernel(cmd *cobra.Command) (*kernel.Kernel, error) {
	if err := g.loadSecrets(cmd.ErrOrStderr()); err != nil {
		return nil, err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	guidelines, err := utils.LoadTriageGuidelines(g.projectDir)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	k, err := kernel.New(cmd.Context(), cfg, kernel.Options{Offline: g.offline, Guidelines: guidelines})
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return k, nil
}

func closeKernel(k *kernel.Kernel, errOut io.Writer) {
	if err := k.Close(context.Background()); err != nil {
		fmt.Fprintf(errOut, "⚠️  shutdown: %v\n", err)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func readPassword(r io.Reader, errOut io.Writer, prompt string) (string, error) {
	f, ok := r.(*os.File)
	if !ok {
		return "", fmt.Errorf("cannot prompt for a password without a terminal")
	}
	fmt.Fprint(errOut, prompt)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(errOut)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
