// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"os"
	"os/exec"
)

const (
	// DefaultReleasesBaseURL is where java-tron publishes release jars.
	DefaultReleasesBaseURL = "https://github.com/tronprotocol/java-tron/releases/download/"
	// DefaultLatestVersion is the latest known java-tron release.
	DefaultLatestVersion = "4.1.2"
	// DefaultLegacyVersion is the last release publishing java-tron.jar.
	DefaultLegacyVersion = "3.1.3"
	// DefaultMinimumRangedVersion is the oldest release of the ranged bucket.
	DefaultMinimumRangedVersion = "3.2.0"

	// DefaultEventNodeURL is the event-node source repository.
	DefaultEventNodeURL = "https://github.com/tronprotocol/event-query.git"
	// DefaultEventNodeBranch is the event-node branch to clone.
	DefaultEventNodeBranch = "master"
	// DefaultGridAPIURL is the grid-api source repository.
	DefaultGridAPIURL = "https://github.com/tronprotocol/tron-grid.git"
	// DefaultGridAPIBranch is the grid-api branch to clone.
	DefaultGridAPIBranch = "master"

	// DefaultJDKBinary is the JDK launcher checked by Preflight.
	DefaultJDKBinary = "java"
	// DefaultJDKRequired is the only JDK version the node jars run on.
	DefaultJDKRequired = "1.8"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Source is a git repository cloned into a node directory.
	Source struct {
		URL    string
		Branch string
	}

	// Config holds the settings of a Provisioner.
	Config struct {
		// Policy resolves version requests into release URLs.
		Policy Policy

		// JDKBinary is the java launcher invoked with -version.
		JDKBinary string

		// JDKRequired is the major.minor version the launcher must report.
		JDKRequired string

		// EventNode and GridAPI are the source trees cloned by FetchSource.
		EventNode Source
		GridAPI   Source

		execCommand ExecCommandFunc
		removeAll   func(path string) error
	}

	// Option is a functional option for configuring a Config.
	Option func(*Config)
)

// DefaultPolicy returns the built-in version policy.
func DefaultPolicy() Policy {
	return Policy{
		BaseURL:       DefaultReleasesBaseURL,
		Latest:        MustParseVersion(DefaultLatestVersion),
		Legacy:        MustParseVersion(DefaultLegacyVersion),
		MinimumRanged: MustParseVersion(DefaultMinimumRangedVersion),
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Policy:      DefaultPolicy(),
		JDKBinary:   DefaultJDKBinary,
		JDKRequired: DefaultJDKRequired,
		EventNode:   Source{URL: DefaultEventNodeURL, Branch: DefaultEventNodeBranch},
		GridAPI:     Source{URL: DefaultGridAPIURL, Branch: DefaultGridAPIBranch},
		execCommand: exec.CommandContext,
		removeAll:   os.RemoveAll,
	}
}

// WithPolicy returns an Option that sets the version policy.
func WithPolicy(p Policy) Option {
	return func(c *Config) {
		c.Policy = p
	}
}

// WithJDK returns an Option that sets the JDK launcher and the required version.
// Empty values keep the current setting.
func WithJDK(binary, required string) Option {
	return func(c *Config) {
		if binary != "" {
			c.JDKBinary = binary
		}
		if required != "" {
			c.JDKRequired = required
		}
	}
}

// WithEventNodeSource returns an Option that sets the event-node repository.
func WithEventNodeSource(src Source) Option {
	return func(c *Config) {
		c.EventNode = src
	}
}

// WithGridAPISource returns an Option that sets the grid-api repository.
func WithGridAPISource(src Source) Option {
	return func(c *Config) {
		c.GridAPI = src
	}
}

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(c *Config) {
		c.execCommand = fn
	}
}

// Apply applies the given options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
