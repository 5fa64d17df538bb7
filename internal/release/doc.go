// SPDX-License-Identifier: MPL-2.0

// Package release lists published java-tron releases through the GitHub
// Releases API. Release tags carry a line prefix ("Odyssey-v3.7",
// "GreatVoyage-v4.1.2"); Version strips it so releases can be ordered and
// matched against the provisioning version policy.
package release
