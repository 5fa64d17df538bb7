// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trondev/trondev/internal/issue"
	"github.com/trondev/trondev/internal/provision"
	"github.com/trondev/trondev/internal/release"
	"github.com/trondev/trondev/pkg/types"
)

type versionsParams struct {
	limit   int
	request string
}

func newVersionsCommand(current func() *session) *cobra.Command {
	p := versionsParams{}

	cmd := &cobra.Command{
		Use:   "versions [version]",
		Short: "List published node releases and whether init supports them",
		Long: `List published node releases and whether init supports them.

With a version argument, only the release init would download for that
request is looked up and checked for its node jar asset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withSession(current, func(cmd *cobra.Command, args []string, s *session) error {
			if len(args) == 1 {
				p.request = args[0]
			}
			return runVersions(cmd.Context(), s, p)
		}),
	}

	cmd.Flags().IntVarP(&p.limit, "limit", "n", 20, "show at most this many releases (0 for all)")

	return cmd
}

func runVersions(ctx context.Context, s *session, p versionsParams) error {
	cfg, err := s.requireConfig()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return s.fail(err)
	}

	if p.request != "" {
		return runVersionCheck(ctx, s, s.app.releasesFor(cfg), policy, p.request)
	}

	releases, err := s.app.releasesFor(cfg).ListReleases(ctx)
	if err != nil {
		return s.failRelease(err)
	}

	out := s.app.stdout
	fmt.Fprintln(out, TitleStyle.Render("Published releases"))
	fmt.Fprintf(out, "%s\n\n", SubtitleStyle.Render(fmt.Sprintf("supported: %s - %s", policy.Legacy, policy.Latest)))

	if p.limit > 0 && len(releases) > p.limit {
		releases = releases[:p.limit]
	}
	for _, r := range releases {
		fmt.Fprintf(out, "  %-10s %-24s %s\n", r.Version(), r.TagName, supportLabel(policy, r))
	}
	return nil
}

// runVersionCheck resolves request like init does and looks up that release.
func runVersionCheck(ctx context.Context, s *session, releases ReleaseLister, policy provision.Policy, request string) error {
	res, err := policy.Resolve(request)
	if err != nil {
		return s.fail(err)
	}

	r, err := releases.GetReleaseByTag(ctx, res.Tag)
	if err != nil {
		if errors.Is(err, release.ErrReleaseNotFound) {
			err = issue.NewErrorContext().
				WithOperation("find release").
				WithResource(res.Tag).
				WithSuggestion("Run 'trondev versions' to list the published releases").
				Wrap(err).
				BuildError()
		}
		return s.failRelease(err)
	}

	fmt.Fprintf(s.app.stdout, "  %-10s %-24s %s\n", r.Version(), r.TagName, supportLabel(policy, *r))
	if len(r.Assets) > 0 && !r.HasAsset(res.FullNodeJar) {
		return &ExitError{
			Code: types.ExitOperationFailed,
			Err:  fmt.Errorf("release %s has no %s asset", r.TagName, res.FullNodeJar),
		}
	}
	return nil
}

// failRelease adds the token hint to rate limit errors.
func (s *session) failRelease(err error) error {
	var rateLimitErr *release.RateLimitError
	if errors.As(err, &rateLimitErr) {
		fmt.Fprintln(s.app.stderr, "To increase your rate limit, set a GitHub token:\n  export GITHUB_TOKEN=ghp_...")
	}
	return s.fail(err)
}

// supportLabel tells whether init accepts the release and which bucket it falls in.
func supportLabel(policy provision.Policy, r release.Release) string {
	v, err := provision.ParseVersion(r.Version())
	if err != nil {
		return SubtitleStyle.Render("unparsable")
	}
	res, err := policy.Resolve(v.String())
	if err != nil {
		return WarningStyle.Render("unsupported")
	}
	label := SuccessStyle.Render("supported") + " " + SubtitleStyle.Render("("+res.Bucket.String()+")")
	if len(r.Assets) > 0 && !r.HasAsset(res.FullNodeJar) {
		label += " " + WarningStyle.Render("no "+res.FullNodeJar+" asset")
	}
	return label
}
