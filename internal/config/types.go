// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/trondev/trondev/internal/provision"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Releases configures where node jars come from and the version policy boundaries.
		Releases ReleasesConfig `json:"releases" mapstructure:"releases"`
		// Sources configures the git repositories cloned into the node directories.
		Sources SourcesConfig `json:"sources" mapstructure:"sources"`
		// JDK configures the preflight runtime check.
		JDK JDKConfig `json:"jdk" mapstructure:"jdk"`
		// GitHub configures the release listing API.
		GitHub GitHubConfig `json:"github" mapstructure:"github"`
		// UI configures the user interface.
		UI UIConfig `json:"ui" mapstructure:"ui"`
		// Log configures the rotating debug log.
		Log LogConfig `json:"log" mapstructure:"log"`
	}

	// ReleasesConfig configures release downloads.
	ReleasesConfig struct {
		BaseURL       string `json:"base_url" mapstructure:"base_url"`
		Latest        string `json:"latest" mapstructure:"latest"`
		Legacy        string `json:"legacy" mapstructure:"legacy"`
		MinimumRanged string `json:"minimum_ranged" mapstructure:"minimum_ranged"`
	}

	// SourcesConfig lists the source repositories.
	SourcesConfig struct {
		EventNode SourceConfig `json:"event_node" mapstructure:"event_node"`
		GridAPI   SourceConfig `json:"grid_api" mapstructure:"grid_api"`
	}

	// SourceConfig is one git repository and branch.
	SourceConfig struct {
		URL    string `json:"url" mapstructure:"url"`
		Branch string `json:"branch" mapstructure:"branch"`
	}

	// JDKConfig configures the JDK preflight.
	JDKConfig struct {
		// Binary is the java launcher to run
		Binary string `json:"binary" mapstructure:"binary"`
		// Required is the major.minor version the launcher must report
		Required string `json:"required" mapstructure:"required"`
	}

	// GitHubConfig points the release lister at a repository.
	GitHubConfig struct {
		APIURL string `json:"api_url" mapstructure:"api_url"`
		Owner  string `json:"owner" mapstructure:"owner"`
		Repo   string `json:"repo" mapstructure:"repo"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// LogConfig configures the rotating debug log. An empty File disables it.
	LogConfig struct {
		File       string `json:"file" mapstructure:"file"`
		MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
		MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
		MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	}
)

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks cross-field constraints the schema cannot express: the
// legacy release must precede the ranged minimum, which must not exceed latest.
func (c *Config) Validate() error {
	var errs []error

	keys := []string{"releases.latest", "releases.legacy", "releases.minimum_ranged"}
	raw := map[string]string{
		"releases.latest":         c.Releases.Latest,
		"releases.legacy":         c.Releases.Legacy,
		"releases.minimum_ranged": c.Releases.MinimumRanged,
	}
	parsed := make(map[string]provision.Version, len(keys))
	for _, key := range keys {
		v, err := provision.ParseVersion(raw[key])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		parsed[key] = v
	}

	if len(errs) == 0 {
		latest, legacy, minimum := parsed["releases.latest"], parsed["releases.legacy"], parsed["releases.minimum_ranged"]
		if legacy.Compare(minimum) >= 0 {
			errs = append(errs, fmt.Errorf("releases.legacy %s must be older than releases.minimum_ranged %s",
				legacy, minimum))
		}
		if minimum.Compare(latest) > 0 {
			errs = append(errs, fmt.Errorf("releases.minimum_ranged %s must not be newer than releases.latest %s",
				minimum, latest))
		}
	}

	if strings.TrimSpace(c.JDK.Binary) == "" {
		errs = append(errs, errors.New("jdk.binary must not be empty"))
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}
