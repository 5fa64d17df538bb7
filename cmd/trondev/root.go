// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the persistent flags shared by every subcommand.
type rootFlags struct {
	verbose    bool
	configFile string
	dir        string
	logFile    string
}

// NewRootCommand builds the trondev command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	var sess *session

	rootCmd := &cobra.Command{
		Use:   "trondev",
		Short: "Provision a local TRON node workspace",
		Long: TitleStyle.Render("trondev") + SubtitleStyle.Render(" - Provision a local TRON node workspace") + `

trondev prepares a directory for running java-tron full and solidity nodes
next to the event-node and grid-api services: it checks the JDK, lays out
the node directories, clones the service sources, downloads the node jars
for the requested release and distributes the logging configuration.

` + SubtitleStyle.Render("Examples:") + `
  trondev init                     Provision the latest supported release
  trondev init --version 3.7.0     Provision a specific release
  trondev init --reset             Stop nodes and rebuild the workspace
  trondev status                   Show what is installed
  trondev register full-node 4242  Let stop and reset manage a running node
  trondev versions                 List published releases`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context(), app, flags)
			if err != nil {
				return err
			}
			sess = s
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default is $HOME/.config/trondev/config.cue)")
	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", "", "workspace directory (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "write a rotating JSON debug log to this file")

	current := func() *session { return sess }
	rootCmd.AddCommand(newInitCommand(current))
	rootCmd.AddCommand(newStatusCommand(current))
	rootCmd.AddCommand(newStopCommand(current))
	rootCmd.AddCommand(newRegisterCommand(current))
	rootCmd.AddCommand(newVersionsCommand(current))
	rootCmd.AddCommand(newConfigCommand(current))

	return rootCmd
}

// withSession adapts fn into a RunE that receives the invocation session and
// closes it afterwards, whatever fn returns.
func withSession(current func() *session, fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s := current()
		defer s.close()
		return fn(cmd, args, s)
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the production App and runs the command tree.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
