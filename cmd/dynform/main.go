// Package main provides the dynform binary: the form server plus client
// commands that publish schemas, fill the active form on the terminal and
// browse submissions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform/internal/config"
	"github.com/goliatone/go-dynform/internal/logging"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "dynform"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	logFormat  string
	serverURL  string
}

// load resolves the configuration and installs the process logger. Flags
// given on the command line win over the file and the environment.
func (g *globals) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("server") {
		cfg.Client.ServerURL = g.serverURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Options{Level: level, Format: cfg.Log.Format})
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Schema-driven form server and client",
		Long: `Dynform renders, validates and stores forms described by a declarative
schema of named, typed fields.

Run "dynform serve" to start the API and HTML form, then use the client
commands against it:
- publish a JSON, YAML or OpenAPI schema
- fill the active form interactively
- list and inspect submissions`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")
	pf.StringVar(&g.serverURL, "server", "http://localhost:5000", "Base URL of a running dynform server")

	cmd.AddCommand(
		serveCmd(g),
		publishCmd(g),
		fillCmd(g),
		submissionsCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}
