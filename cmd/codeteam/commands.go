package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fractalmind-ai/codeteam/internal/config"
	"github.com/fractalmind-ai/codeteam/internal/gateway"
	"github.com/fractalmind-ai/codeteam/internal/mcpserver"
	"github.com/fractalmind-ai/codeteam/internal/tools"
	"github.com/spf13/cobra"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP and WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				a.cfg.Gateway.Port = port
			}

			server, err := gateway.NewServer(a.cfg, a.manager, gateway.Info{
				WorkspaceRoot: a.toolkit.Root(),
				Session:       a.session,
				Logger:        a.log,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize gateway: %w", err)
			}

			startErr := server.Start(cmd.Context())
			if err := server.Stop(); err != nil {
				a.log.WithError(err).Warn("gateway shutdown error")
				if startErr == nil {
					return err
				}
			}
			if startErr != nil {
				return fmt.Errorf("gateway error: %w", startErr)
			}
			return nil
		},
	}
	cmd.Flags().Int("port", 0, "override gateway.port")
	return cmd
}

func mcpCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdin and stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			server, err := mcpserver.New(a.registry, Version, a.log)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), os.Stdin, cmd.OutOrStdout())
		},
	}
}

func toolsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools agents may call",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.registry.Execute(cmd.Context(), "list_tools", tools.Request{})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
}

func callCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Run one tool as the admin agent and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var raw json.RawMessage
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("arguments must be a JSON object")
				}
				raw = json.RawMessage(args[1])
			}
			admin, err := a.adminName()
			if err != nil {
				return err
			}
			res, err := a.manager.ExecuteTool(cmd.Context(), admin, args[0], raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			if res.Failed {
				return errToolFailed
			}
			return nil
		},
	}
}

func auditCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent tool invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return fmt.Errorf("audit log is disabled (set audit.enabled in the config)")
			}
			limit, _ := cmd.Flags().GetInt("limit")
			invocations, err := a.store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(invocations) == 0 {
				fmt.Fprintln(w, "(no invocations recorded)")
				return nil
			}
			now := time.Now()
			for _, inv := range invocations {
				fmt.Fprintf(w, "%s  %-10s %-12s %-5s %8s %6s  %s\n",
					humanize.RelTime(inv.Time, now, "ago", "from now"),
					inv.Agent,
					inv.Tool,
					inv.Outcome,
					humanize.Bytes(uint64(inv.OutputBytes)),
					inv.Duration.Round(time.Millisecond),
					inv.Args,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of invocations to show")
	return cmd
}

func initConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("path")
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("path", defaultConfigPath, "where to write the config")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}
