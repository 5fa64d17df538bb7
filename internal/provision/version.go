// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// LatestSelector is the version request that resolves to the latest known release.
const LatestSelector = "latest"

const (
	// BucketLatest is selected by the literal "latest" request.
	BucketLatest Bucket = iota + 1
	// BucketLegacy is selected by exactly the legacy boundary release.
	BucketLegacy
	// BucketRanged covers minimum-ranged <= v < latest.
	BucketRanged
)

const (
	// SourceFullNodeJar is the full node jar name published by releases after the legacy one.
	SourceFullNodeJar = "FullNode.jar"
	// LegacyFullNodeJar is the full node jar name published by the legacy release.
	LegacyFullNodeJar = "java-tron.jar"
	// SourceSolidityNodeJar is the solidity node jar name published by every release.
	SourceSolidityNodeJar = "SolidityNode.jar"

	// Release tag prefixes. Releases before 4.0.0 belong to the Odyssey line.
	odysseyTagPrefix     = "Odyssey-v"
	greatVoyageTagPrefix = "GreatVoyage-v"
	greatVoyageMajor     = "v4"
)

var (
	// ErrInvalidVersion is the sentinel for malformed version strings.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrUnsupportedVersion is the sentinel for version requests outside every bucket.
	ErrUnsupportedVersion = errors.New("unsupported version")

	versionPattern = regexp.MustCompile(`^v?\d+\.\d+(\.\d+)?$`)
)

type (
	// Bucket identifies which version policy rule matched a request.
	Bucket int

	// Version is a parsed dotted release version ("3.2.0", "3.7").
	// Ordering follows numeric components, so "3.10.0" sorts after "3.2.0".
	Version struct {
		raw       string // as written, without a leading "v"
		canonical string // semver canonical form, e.g. "v3.7.0"
	}

	// Policy holds the boundary releases of the three-bucket resolution rules.
	Policy struct {
		BaseURL       string
		Latest        Version
		Legacy        Version
		MinimumRanged Version
	}

	// Resolution is the outcome of resolving a version request.
	Resolution struct {
		Bucket Bucket
		// Version is the release recorded as installed.
		Version Version
		// Tag is the release tag the jars are downloaded from.
		Tag string
		// URL is the release download base URL (policy base URL + tag).
		URL string
		// FullNodeJar and SolidityNodeJar are the published jar names.
		FullNodeJar     string
		SolidityNodeJar string
	}

	// InvalidVersionError is returned when a version string cannot be parsed.
	InvalidVersionError struct {
		Value string
	}

	// UnsupportedVersionError is returned when a request matches no bucket.
	UnsupportedVersionError struct {
		Requested string
		Oldest    Version
		Latest    Version
	}
)

// ParseVersion parses "X.Y" or "X.Y.Z", with an optional leading "v".
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if !versionPattern.MatchString(s) {
		return Version{}, &InvalidVersionError{Value: s}
	}
	raw := strings.TrimPrefix(s, "v")
	canonical := semver.Canonical("v" + raw)
	if canonical == "" {
		return Version{}, &InvalidVersionError{Value: s}
	}
	return Version{raw: raw, canonical: canonical}, nil
}

// MustParseVersion is ParseVersion that panics on error. For constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as written, without a leading "v".
func (v Version) String() string { return v.raw }

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool { return v.canonical == "" }

// Compare returns -1, 0 or +1 by numeric ordering.
func (v Version) Compare(o Version) int { return semver.Compare(v.canonical, o.canonical) }

// Equal reports whether v and o denote the same release ("3.7" equals "3.7.0").
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Tag returns the release tag of v.
func (v Version) Tag() string {
	if semver.Compare(semver.Major(v.canonical), greatVoyageMajor) >= 0 {
		return greatVoyageTagPrefix + v.raw
	}
	return odysseyTagPrefix + v.raw
}

// String returns the bucket name.
func (b Bucket) String() string {
	switch b {
	case BucketLatest:
		return "latest"
	case BucketLegacy:
		return "legacy"
	case BucketRanged:
		return "ranged"
	default:
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
}

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q (expected X.Y or X.Y.Z)", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for classification.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("version: %s not supported (current support versions: %s - %s)",
		e.Requested, e.Oldest, e.Latest)
}

// Unwrap returns ErrUnsupportedVersion so callers can use errors.Is for classification.
func (e *UnsupportedVersionError) Unwrap() error { return ErrUnsupportedVersion }

// Resolve applies the bucket rules in order, first match wins:
// "latest", exactly the legacy release, then MinimumRanged <= v <= Latest.
// Anything else, malformed input included, yields an UnsupportedVersionError.
func (p Policy) Resolve(request string) (Resolution, error) {
	request = strings.TrimSpace(request)

	if request == LatestSelector {
		return p.resolution(BucketLatest, p.Latest, SourceFullNodeJar), nil
	}

	v, err := ParseVersion(request)
	if err != nil {
		return Resolution{}, p.unsupported(request)
	}

	switch {
	case v.Equal(p.Legacy):
		return p.resolution(BucketLegacy, v, LegacyFullNodeJar), nil
	case v.Equal(p.Latest):
		return p.resolution(BucketLatest, p.Latest, SourceFullNodeJar), nil
	case v.Compare(p.MinimumRanged) >= 0 && v.Compare(p.Latest) < 0:
		return p.resolution(BucketRanged, v, SourceFullNodeJar), nil
	default:
		return Resolution{}, p.unsupported(request)
	}
}

func (p Policy) resolution(b Bucket, v Version, fullJar string) Resolution {
	tag := v.Tag()
	return Resolution{
		Bucket:          b,
		Version:         v,
		Tag:             tag,
		URL:             strings.TrimRight(p.BaseURL, "/") + "/" + tag,
		FullNodeJar:     fullJar,
		SolidityNodeJar: SourceSolidityNodeJar,
	}
}

func (p Policy) unsupported(request string) error {
	return &UnsupportedVersionError{Requested: request, Oldest: p.Legacy, Latest: p.Latest}
}
