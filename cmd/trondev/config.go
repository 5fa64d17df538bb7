// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/trondev/trondev/internal/config"
)

// newConfigCommand creates the `trondev config` command tree.
func newConfigCommand(current func() *session) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage trondev configuration",
		Long: `Manage trondev configuration.

Configuration is stored in:
  - Linux: ~/.config/trondev/config.cue
  - macOS: ~/Library/Application Support/trondev/config.cue
  - Windows: %APPDATA%\trondev\config.cue

A config.cue in the current directory is used when the above does not exist.
Every key can be overridden with a TRONDEV_ environment variable, for example
TRONDEV_RELEASES_LATEST=4.2.0.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: withSession(current, func(_ *cobra.Command, _ []string, s *session) error {
			return showConfig(s)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: withSession(current, func(_ *cobra.Command, _ []string, s *session) error {
			return initConfig(s)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: withSession(current, func(_ *cobra.Command, _ []string, s *session) error {
			return showConfigPath(s)
		}),
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output raw configuration as CUE",
		RunE: withSession(current, func(_ *cobra.Command, _ []string, s *session) error {
			cfg, err := s.requireConfig()
			if err != nil {
				return err
			}
			fmt.Fprint(s.app.stdout, config.GenerateCUE(cfg))
			return nil
		}),
	})

	return cfgCmd
}

func showConfig(s *session) error {
	cfg, err := s.requireConfig()
	if err != nil {
		return err
	}
	out := s.app.stdout
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if s.cfgPath != "" {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), s.cfgPath)
	} else {
		fmt.Fprintf(out, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	sections := []struct {
		name   string
		values [][2]string
	}{
		{name: "releases", values: [][2]string{
			{"base_url", cfg.Releases.BaseURL},
			{"latest", cfg.Releases.Latest},
			{"legacy", cfg.Releases.Legacy},
			{"minimum_ranged", cfg.Releases.MinimumRanged},
		}},
		{name: "sources", values: [][2]string{
			{"event_node", cfg.Sources.EventNode.URL + " @ " + cfg.Sources.EventNode.Branch},
			{"grid_api", cfg.Sources.GridAPI.URL + " @ " + cfg.Sources.GridAPI.Branch},
		}},
		{name: "jdk", values: [][2]string{
			{"binary", cfg.JDK.Binary},
			{"required", cfg.JDK.Required},
		}},
		{name: "github", values: [][2]string{
			{"api_url", cfg.GitHub.APIURL},
			{"repository", cfg.GitHub.Owner + "/" + cfg.GitHub.Repo},
		}},
		{name: "ui", values: [][2]string{
			{"verbose", fmt.Sprintf("%v", cfg.UI.Verbose)},
		}},
		{name: "log", values: [][2]string{
			{"file", orNone(cfg.Log.File)},
			{"max_size_mb", fmt.Sprintf("%d", cfg.Log.MaxSizeMB)},
			{"max_backups", fmt.Sprintf("%d", cfg.Log.MaxBackups)},
			{"max_age_days", fmt.Sprintf("%d", cfg.Log.MaxAgeDays)},
		}},
	}

	for _, section := range sections {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s:\n", keyStyle.Render(section.name))
		for _, kv := range section.values {
			fmt.Fprintf(out, "  %s: %s\n", kv[0], valueStyle.Render(kv[1]))
		}
	}
	return nil
}

func initConfig(s *session) error {
	path, created, err := config.CreateDefaultConfig(configDirFor(s))
	if err != nil {
		return s.fail(err)
	}
	if !created {
		fmt.Fprintf(s.app.stdout, "Config file already exists at: %s\n", path)
		return nil
	}
	fmt.Fprintln(s.app.stdout, SuccessStyle.Render("Created default config at: ")+path)
	return nil
}

func showConfigPath(s *session) error {
	if s.cfgPath != "" {
		fmt.Fprintln(s.app.stdout, s.cfgPath)
		return nil
	}
	fmt.Fprintln(s.app.stdout, filepath.Join(configDirFor(s), config.ConfigFileName+"."+config.ConfigFileExt))
	return nil
}

// configDirFor returns the directory of an explicit --config file, or the
// platform config directory.
func configDirFor(s *session) string {
	if s.flags.configFile != "" {
		return filepath.Dir(s.flags.configFile)
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	return dir
}

func orNone(v string) string {
	if v == "" {
		return "(none)"
	}
	return v
}
