package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fractalmind-ai/codeteam/internal/agent"
	"github.com/fractalmind-ai/codeteam/internal/audit"
	"github.com/fractalmind-ai/codeteam/internal/config"
	"github.com/fractalmind-ai/codeteam/internal/logging"
	"github.com/fractalmind-ai/codeteam/internal/toolkit"
	"github.com/fractalmind-ai/codeteam/internal/tools"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

const defaultConfigPath = "./codeteam.yaml"

// errToolFailed exits non-zero without printing anything beyond the tool output.
var errToolFailed = errors.New("tool returned an error")

type globalOptions struct {
	configPath string
	root       string
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(runWithContext(ctx, os.Args[1:], os.Stdout))
}

func runWithContext(ctx context.Context, args []string, out io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errToolFailed) {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "codeteam",
		Short:         "Sandboxed file tools for a multi-agent coding team",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "path to config file")
	flags.StringVar(&opts.root, "root", "", "override workspace.root")
	flags.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd(opts),
		mcpCmd(opts),
		toolsCmd(opts),
		callCmd(opts),
		auditCmd(opts),
		initConfigCmd(),
	)
	return rootCmd
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	toolkit  *toolkit.Toolkit
	registry *tools.Registry
	manager  *agent.Manager
	store    *audit.Store
	session  string
}

func setup(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	explicit := cmd.Flags().Changed("config")
	cfg, err := loadConfig(opts.configPath, explicit)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if strings.TrimSpace(opts.root) != "" {
		cfg.Workspace.Root = opts.root
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}

	dotenv, err := config.LoadDotEnv(filepath.Join(filepath.Dir(opts.configPath), ".env"))
	if err != nil {
		return nil, err
	}
	cfg.ResolveCredentials(config.ChainLookup(dotenv, os.LookupEnv))

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	session := uuid.NewString()

	tk, err := toolkit.New(cfg.Workspace.Root, toolkit.Options{
		SearchMaxMatches:   cfg.Tools.SearchMaxMatches,
		ExcludedExtensions: cfg.Tools.ExcludedExtensions,
		Logger:             logger.WithField("session", session),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	registry := tools.NewRegistry(cfg.Tools.Allowed)
	registry.SetLogger(logger.WithField("session", session))
	if err := registry.RegisterAll(tools.NewFileTools(tk)...); err != nil {
		return nil, err
	}
	if err := registry.Register(tools.NewListTools(registry)); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      logger,
		toolkit:  tk,
		registry: registry,
		manager:  agent.NewManager(cfg.Agents, registry),
		session:  session,
	}

	if cfg.Audit.Enabled {
		store, err := audit.OpenStore(cfg.Audit.Path, session)
		if err != nil {
			return nil, err
		}
		registry.SetRecorder(store)
		a.store = store
	}

	logger.WithFields(logrus.Fields{
		"root":    tk.Root(),
		"session": session,
		"tools":   strings.Join(registry.Names(), ","),
	}).Debug("workspace ready")
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close audit store")
		}
	}
}

// loadConfig falls back to built-in defaults only when the default path is
// absent and --config was not given.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.DefaultConfig(), nil
		}
	}
	return config.LoadConfig(path)
}

// adminName returns the configured proxy agent, which acts for the human operator.
func (a *app) adminName() (string, error) {
	for _, name := range a.cfg.AgentNames() {
		if agentCfg := a.cfg.Agents[name]; agentCfg != nil && agentCfg.Role == config.RoleProxy {
			return name, nil
		}
	}
	return "", fmt.Errorf("no agent with role %q configured", config.RoleProxy)
}
