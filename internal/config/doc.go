// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/trondev/config.cue (or the XDG equivalent on Linux,
// ~/Library/Application Support/trondev/config.cue on macOS, %APPDATA%\trondev\config.cue
// on Windows), falling back to ./config.cue. Every key may also be overridden through
// TRONDEV_-prefixed environment variables such as TRONDEV_RELEASES_LATEST.
//
// Files are validated against an embedded CUE schema (config_schema.cue); ordering of the
// release version boundaries is checked afterwards by Config.Validate.
package config
