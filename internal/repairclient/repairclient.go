// Package repairclient issues the single outbound POST that asks the
// external repair service to open a session for a sanitized, prompt-built
// error report.
package repairclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/opsguard/errorpilot/internal/errcat"
)

const component = "C7"

// DefaultBaseURL is the repair service's API base when New is called with
// baseURL "".
const DefaultBaseURL = "https://api.devin.ai/v1"

const requestTimeout = 30 * time.Second

// Session is the parsed result of a successful dispatch.
type Session struct {
	SessionID string
	URL       string
	Status    string
}

// Client dispatches repair requests to the upstream service.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New builds a Client. baseURL "" selects DefaultBaseURL.
func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Dispatch sends prompt to the repair service on behalf of repo and returns
// the created session. On any non-200 response or transport failure, it
// returns a wrapped *errcat.Error with Kind KindUpstream; the caller
// surfaces a structured error to the RoutingResult, never a raw session.
func (c *Client) Dispatch(ctx context.Context, prompt, repo string) (*Session, error) {
	if c.apiKey == "" {
		return nil, errcat.Configuration(component, "Dispatch", repo, fmt.Errorf("no repair API key configured"))
	}

	reqBody, err := sjson.SetBytes(nil, "prompt", prompt)
	if err != nil {
		return nil, errcat.Wrap(component, "Dispatch", errcat.KindParse, repo, err)
	}
	reqBody, err = sjson.SetBytes(reqBody, "repo", repo)
	if err != nil {
		return nil, errcat.Wrap(component, "Dispatch", errcat.KindParse, repo, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", strings.NewReader(string(reqBody)))
	if err != nil {
		return nil, errcat.Upstream(component, "Dispatch", repo, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errcat.Upstream(component, "Dispatch", repo, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errcat.Upstream(component, "Dispatch", repo, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errcat.Upstream(component, "Dispatch", repo, fmt.Errorf("repair API error: %d: %s", resp.StatusCode, string(data)))
	}

	sessionID := gjson.GetBytes(data, "session_id").String()
	url := gjson.GetBytes(data, "url").String()
	if url == "" && sessionID != "" {
		url = fmt.Sprintf("%s/sessions/%s", c.baseURL, sessionID)
	}
	status := gjson.GetBytes(data, "status").String()
	if status == "" {
		status = "created"
	}

	return &Session{SessionID: sessionID, URL: url, Status: status}, nil
}
