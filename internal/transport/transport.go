// SPDX-License-Identifier: MPL-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	gittransport "github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

const defaultUserAgent = "trondev/dev"

var (
	// ErrInvalidArtifactName is returned for artifact names that are not plain file names.
	ErrInvalidArtifactName = errors.New("invalid artifact name")

	// ErrUnexpectedStatus is the sentinel for non-200 download responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

type (
	// StatusError is returned when a download responds with a status other than 200.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// Transport downloads release artifacts into a directory and clones git repositories.
	Transport struct {
		dir         string
		httpClient  *http.Client
		userAgent   string
		gitAuth     gittransport.AuthMethod
		gitProgress io.Writer
	}

	// Option configures a Transport during construction.
	Option func(*Transport)
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("downloading %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap returns ErrUnexpectedStatus so callers can use errors.Is for classification.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every download.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}

// WithGitToken authenticates HTTPS clones from github.com with an access token.
func WithGitToken(token string) Option {
	return func(t *Transport) {
		if token == "" {
			t.gitAuth = nil
			return
		}
		t.gitAuth = &githttp.BasicAuth{
			Username: "x-access-token",
			Password: token,
		}
	}
}

// WithGitProgress streams clone progress to w.
func WithGitProgress(w io.Writer) Option {
	return func(t *Transport) {
		t.gitProgress = w
	}
}

// New returns a Transport that downloads into dir.
func New(dir string, opts ...Option) *Transport {
	t := &Transport{
		dir:         dir,
		httpClient:  http.DefaultClient,
		userAgent:   defaultUserAgent,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Download fetches <baseURL>/<name> into <dir>/<name> and returns the local
// path. The body is written to a temp file first and renamed into place, so a
// failed download never leaves a partial artifact under the final name.
func (t *Transport) Download(ctx context.Context, name, baseURL string) (_ string, err error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	}
	assetURL := strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", redactURL(assetURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: redactURL(assetURL), StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(t.dir, "."+name+".download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("setting permissions on %s: %w", name, err)
	}

	dst := filepath.Join(t.dir, name)
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("moving download into place: %w", err)
	}
	return dst, nil
}

// GitClone clones a single branch of repoURL into dir. dir may exist as an
// empty directory; a failed clone leaves it empty.
func (t *Transport) GitClone(ctx context.Context, repoURL, branch, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		Auth:          t.authFor(repoURL),
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Progress:      t.gitProgress,
	})
	if err != nil {
		return fmt.Errorf("git clone %s (branch %s): %w", redactURL(repoURL), branch, err)
	}
	return nil
}

// authFor returns the clone credentials for repoURL. The token is only sent to github.com.
func (t *Transport) authFor(repoURL string) gittransport.AuthMethod {
	u, err := url.Parse(repoURL)
	if err != nil || u.Scheme != "https" || u.Hostname() != "github.com" {
		return nil
	}
	return t.gitAuth
}

// redactURL strips credentials, query parameters and fragments from a URL for
// safe inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
