// Package codehost enumerates open, unmerged change requests from the
// configured code-hosting service (GitHub-compatible REST API) for the
// active-work inspector (C8). It is read-only: this module never creates
// branches, commits, or pull requests — the repair service is responsible
// for that.
package codehost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/opsguard/errorpilot/internal/errcat"
	"github.com/opsguard/errorpilot/internal/history"
	"github.com/opsguard/errorpilot/internal/logfields"
	"github.com/opsguard/errorpilot/internal/model"
)

const component = "C8"

// DefaultBaseURL is used when Client is constructed with baseURL "".
const DefaultBaseURL = "https://api.github.com"

const requestTimeout = 30 * time.Second

// maxPRs bounds how many open PRs are requested and returned, matching the
// upstream contract's per_page cap.
const maxPRs = 50

// Client lists open pull requests for a single repository. A missing token
// is not an error: ListOpenPRs returns an empty list rather than failing.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// New builds a Client. baseURL "" selects DefaultBaseURL. token "" is valid
// and makes every ListOpenPRs call return an empty list.
func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type pullRequest struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	HTMLURL   string `json:"html_url"`
	CreatedAt string `json:"created_at"`
}

// ListOpenPRs returns up to maxPRs open, unmerged pull requests for repo
// ("owner/name"), sorted by creation descending. Absence of a token yields
// an empty list and no error. Network failures, after a bounded retry of
// transient errors, return an upstream error; Inspect logs it and treats
// this branch as if no active work existed there.
func (c *Client) ListOpenPRs(ctx context.Context, repo string) ([]model.ActiveWork, error) {
	if c.token == "" {
		return nil, nil
	}

	owner, name, ok := splitRepo(repo)
	if !ok {
		return nil, errcat.Configuration(component, "ListOpenPRs", repo, fmt.Errorf("invalid repo format, expected owner/repo"))
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&sort=created&direction=desc&per_page=%d", c.baseURL, owner, name, maxPRs)

	backoff, err := retry.NewExponential(200 * time.Millisecond)
	if err != nil {
		return nil, errcat.Wrap(component, "ListOpenPRs", errcat.KindUpstream, repo, err)
	}
	backoff = retry.WithMaxRetries(2, backoff)

	var prs []pullRequest
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, ferr := c.fetch(ctx, url)
		if ferr != nil {
			if isRetryable(ferr) {
				return retry.RetryableError(ferr)
			}
			return ferr
		}
		prs = fetched
		return nil
	})
	if err != nil {
		return nil, errcat.Upstream(component, "ListOpenPRs", repo, err)
	}

	work := make([]model.ActiveWork, 0, len(prs))
	for _, pr := range prs {
		var createdAt *time.Time
		if t, perr := time.Parse(time.RFC3339, pr.CreatedAt); perr == nil {
			createdAt = &t
		}
		work = append(work, model.ActiveWork{
			Type:        model.ActiveWorkOpenChangeRequest,
			ID:          fmt.Sprintf("%d", pr.Number),
			Title:       pr.Title,
			Description: pr.Body,
			URL:         pr.HTMLURL,
			CreatedAt:   createdAt,
		})
	}
	return work, nil
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if se, ok := err.(*httpStatusError); ok {
		statusErr = se
	}
	if statusErr == nil {
		// transport-level failure or an undecodable body — worth a retry
		return true
	}
	return statusErr.status >= 500
}

func (c *Client) fetch(ctx context.Context, url string) ([]pullRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{status: resp.StatusCode}
	}

	var prs []pullRequest
	if err := json.NewDecoder(resp.Body).Decode(&prs); err != nil {
		return nil, err
	}
	return prs, nil
}

// Inspect is C8's full contract: the concatenation of every fingerprint
// currently carrying an active repair session (from store) with every open,
// unmerged pull request for repo (from c). The two sources are fetched
// concurrently; a failure fetching open PRs is logged and treated as an
// empty list rather than surfaced, so a code-hosting outage never blocks
// the active-session half of the check.
func (c *Client) Inspect(ctx context.Context, store history.CooldownHistoryStore, repo string, logger *zap.Logger) []model.ActiveWork {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	p := pool.New().WithErrors()

	var sessions []model.ActiveWork
	p.Go(func() error {
		for fp, sessionID := range store.ActiveSessions() {
			sessions = append(sessions, model.ActiveWork{
				Type:  model.ActiveWorkRepairSession,
				ID:    sessionID,
				Title: fmt.Sprintf("active repair session %s", sessionID),
				URL:   sessionURL(store, fp, sessionID),
			})
		}
		return nil
	})

	var prs []model.ActiveWork
	p.Go(func() error {
		fetched, err := c.ListOpenPRs(ctx, repo)
		if err != nil {
			if logger != nil {
				logger.Warn("failed to list open pull requests, treating as none",
					logfields.New().Component(component).Operation("Inspect").Str("repo", repo).Err(err).Build()...)
			}
			return nil
		}
		prs = fetched
		return nil
	})

	// Both branches above always return nil: a code-hosting failure is
	// swallowed, not propagated, so Wait never actually reports an error.
	_ = p.Wait()

	return append(sessions, prs...)
}

// sessionURL recovers the repair service's own URL for sessionID from fp's
// attempt history, so the classifier prompt links to a real session rather
// than a bare id.
func sessionURL(store history.CooldownHistoryStore, fp, sessionID string) string {
	for _, a := range store.HistoryFor(fp).Attempts {
		if a.SessionID == sessionID {
			return a.SessionURL
		}
	}
	return ""
}

func splitRepo(repo string) (owner, name string, ok bool) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
