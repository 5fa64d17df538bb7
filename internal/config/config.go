// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/trondev/trondev/internal/issue"
	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/release"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "trondev"
	// EnvPrefix prefixes environment overrides, e.g. TRONDEV_RELEASES_LATEST.
	EnvPrefix = "TRONDEV"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
)

//go:embed config_schema.cue
var configSchema string

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	policy := provision.DefaultPolicy()
	return &Config{
		Releases: ReleasesConfig{
			BaseURL:       policy.BaseURL,
			Latest:        policy.Latest.String(),
			Legacy:        policy.Legacy.String(),
			MinimumRanged: policy.MinimumRanged.String(),
		},
		Sources: SourcesConfig{
			EventNode: SourceConfig{URL: provision.DefaultEventNodeURL, Branch: provision.DefaultEventNodeBranch},
			GridAPI:   SourceConfig{URL: provision.DefaultGridAPIURL, Branch: provision.DefaultGridAPIBranch},
		},
		JDK: JDKConfig{
			Binary:   provision.DefaultJDKBinary,
			Required: provision.DefaultJDKRequired,
		},
		GitHub: GitHubConfig{
			APIURL: release.DefaultAPIURL,
			Owner:  release.DefaultOwner,
			Repo:   release.DefaultRepo,
		},
		UI: UIConfig{Verbose: false},
		Log: LogConfig{
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Policy converts the releases section into a version policy.
func (c *Config) Policy() (provision.Policy, error) {
	latest, err := provision.ParseVersion(c.Releases.Latest)
	if err != nil {
		return provision.Policy{}, fmt.Errorf("releases.latest: %w", err)
	}
	legacy, err := provision.ParseVersion(c.Releases.Legacy)
	if err != nil {
		return provision.Policy{}, fmt.Errorf("releases.legacy: %w", err)
	}
	minimum, err := provision.ParseVersion(c.Releases.MinimumRanged)
	if err != nil {
		return provision.Policy{}, fmt.Errorf("releases.minimum_ranged: %w", err)
	}
	return provision.Policy{
		BaseURL:       c.Releases.BaseURL,
		Latest:        latest,
		Legacy:        legacy,
		MinimumRanged: minimum,
	}, nil
}

// ProvisionOptions maps the configuration onto provisioner options.
func (c *Config) ProvisionOptions() ([]provision.Option, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	return []provision.Option{
		provision.WithPolicy(policy),
		provision.WithJDK(c.JDK.Binary, c.JDK.Required),
		provision.WithEventNodeSource(provision.Source{URL: c.Sources.EventNode.URL, Branch: c.Sources.EventNode.Branch}),
		provision.WithGridAPISource(provision.Source{URL: c.Sources.GridAPI.URL, Branch: c.Sources.GridAPI.Branch}),
	}, nil
}

// ConfigDir returns the trondev configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading. The returned path is
// the file that was read, or empty when only defaults and environment apply.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	// Every key has a default, so AutomaticEnv can resolve all of them.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'trondev config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		localCuePath := ConfigFileName + "." + ConfigFileExt
		switch {
		case fileExists(cuePath):
			resolvedPath = cuePath
		case fileExists(localCuePath):
			resolvedPath = localCuePath
		}
		// No config file is not an error; defaults apply.
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'trondev config init' to write a fresh default file").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Keep releases.legacy < releases.minimum_ranged <= releases.latest").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("releases.base_url", defaults.Releases.BaseURL)
	v.SetDefault("releases.latest", defaults.Releases.Latest)
	v.SetDefault("releases.legacy", defaults.Releases.Legacy)
	v.SetDefault("releases.minimum_ranged", defaults.Releases.MinimumRanged)
	v.SetDefault("sources.event_node.url", defaults.Sources.EventNode.URL)
	v.SetDefault("sources.event_node.branch", defaults.Sources.EventNode.Branch)
	v.SetDefault("sources.grid_api.url", defaults.Sources.GridAPI.URL)
	v.SetDefault("sources.grid_api.branch", defaults.Sources.GridAPI.Branch)
	v.SetDefault("jdk.binary", defaults.JDK.Binary)
	v.SetDefault("jdk.required", defaults.JDK.Required)
	v.SetDefault("github.api_url", defaults.GitHub.APIURL)
	v.SetDefault("github.owner", defaults.GitHub.Owner)
	v.SetDefault("github.repo", defaults.GitHub.Repo)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)
	v.SetDefault("log.max_age_days", defaults.Log.MaxAgeDays)
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Config fields are all optional, so validation uses Concrete(false) and the
// decoded map is merged over the defaults rather than replacing them.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file into dir unless one
// already exists. It returns the file path and whether it was written.
func CreateDefaultConfig(dir string) (string, bool, error) {
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			return "", false, err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, false, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// trondev configuration file\n\n")

	sb.WriteString("releases: {\n")
	fmt.Fprintf(&sb, "\tbase_url:       %q\n", cfg.Releases.BaseURL)
	fmt.Fprintf(&sb, "\tlatest:         %q\n", cfg.Releases.Latest)
	fmt.Fprintf(&sb, "\tlegacy:         %q\n", cfg.Releases.Legacy)
	fmt.Fprintf(&sb, "\tminimum_ranged: %q\n", cfg.Releases.MinimumRanged)
	sb.WriteString("}\n")

	sb.WriteString("\nsources: {\n")
	fmt.Fprintf(&sb, "\tevent_node: {url: %q, branch: %q}\n", cfg.Sources.EventNode.URL, cfg.Sources.EventNode.Branch)
	fmt.Fprintf(&sb, "\tgrid_api: {url: %q, branch: %q}\n", cfg.Sources.GridAPI.URL, cfg.Sources.GridAPI.Branch)
	sb.WriteString("}\n")

	sb.WriteString("\njdk: {\n")
	fmt.Fprintf(&sb, "\tbinary:   %q\n", cfg.JDK.Binary)
	fmt.Fprintf(&sb, "\trequired: %q\n", cfg.JDK.Required)
	sb.WriteString("}\n")

	sb.WriteString("\ngithub: {\n")
	fmt.Fprintf(&sb, "\tapi_url: %q\n", cfg.GitHub.APIURL)
	fmt.Fprintf(&sb, "\towner:   %q\n", cfg.GitHub.Owner)
	fmt.Fprintf(&sb, "\trepo:    %q\n", cfg.GitHub.Repo)
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tfile:         %q\n", cfg.Log.File)
	fmt.Fprintf(&sb, "\tmax_size_mb:  %d\n", cfg.Log.MaxSizeMB)
	fmt.Fprintf(&sb, "\tmax_backups:  %d\n", cfg.Log.MaxBackups)
	fmt.Fprintf(&sb, "\tmax_age_days: %d\n", cfg.Log.MaxAgeDays)
	sb.WriteString("}\n")

	return sb.String()
}
