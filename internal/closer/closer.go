// Package closer confirms task completion in the external CDS system
// on the owner's behalf: a best-effort diagnostic GET followed by the
// state-changing close POST, both under the same credentials.
package closer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// ISO-8601 with milliseconds, what the frontend sends.
	timestampLayout = "2006-01-02T15:04:05.000Z"

	successExcerptLen = 200
	failureExcerptLen = 800
)

// Credentials are resolved per row before any network call.
type Credentials struct {
	Bearer string
	APIKey string
}

// ResolveCredentials picks the bearer token and API key for a close
// attempt: the values captured from the owning browser session win,
// the service-wide fallback fills gaps. Missing both is an immediate
// failure, before any network call.
func ResolveCredentials(rowBearer, rowAPIKey, fallbackBearer, fallbackAPIKey string) (Credentials, error) {
	c := Credentials{
		Bearer: firstNonEmpty(rowBearer, fallbackBearer),
		APIKey: firstNonEmpty(rowAPIKey, fallbackAPIKey),
	}
	if c.Bearer == "" {
		return Credentials{}, errors.New("missing bearer token (client x-bearer/authToken or CLOSE_TASK_BEARER)")
	}
	if c.APIKey == "" {
		return Credentials{}, errors.New("missing cds api key (client x-cds-api-key or CDS_API_KEY)")
	}
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Result describes a successful close call.
type Result struct {
	StatusCode int
	Excerpt    string
}

type Client struct {
	baseURL   string
	closePath string
	origin    string
	client    *http.Client
	now       func() time.Time
}

func New(baseURL, closePath, origin string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		closePath: closePath,
		origin:    origin,
		client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// CloseTask runs the two-call protocol. The diagnostic GET surfaces
// authorization problems in the external system's logs; its outcome
// never blocks the close. Any 2xx on the close POST is success.
func (c *Client) CloseTask(ctx context.Context, taskID, taskURL, boardID string, creds Credentials) (*Result, error) {
	c.authCheck(ctx, taskID, boardID, taskURL, creds)

	closeURL, err := url.Parse(c.baseURL + c.closePath)
	if err != nil {
		return nil, err
	}
	q := closeURL.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	closeURL.RawQuery = q.Encode()

	payload, err := json.Marshal(map[string]any{"task_id": coerceTaskID(taskID)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, closeURL.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, taskURL, creds)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d - %s", resp.StatusCode, truncate(string(body), failureExcerptLen))
	}
	return &Result{
		StatusCode: resp.StatusCode,
		Excerpt:    truncate(string(body), successExcerptLen),
	}, nil
}

// authCheck fetches the task details with the close credentials so an
// auth problem shows up early on the external side. Errors are
// swallowed on purpose.
func (c *Client) authCheck(ctx context.Context, taskID, boardID, taskURL string, creds Credentials) {
	id := strings.TrimSpace(taskID)
	if id == "" {
		return
	}

	q := url.Values{}
	q.Set("taskId", id)
	if b := strings.TrimSpace(boardID); b != "" {
		q.Set("boardId", b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/work/Task/GetTaskInfo?"+q.Encode(), nil)
	if err != nil {
		return
	}
	c.setHeaders(req, taskURL, creds)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
}

// setHeaders applies the fixed caller identity the external API
// expects: spoofed origin/referer, bearer auth, the CDS api key, a
// device marker and a per-request timestamp.
func (c *Client) setHeaders(req *http.Request, taskURL string, creds Credentials) {
	referer := taskURL
	if referer == "" {
		referer = c.origin
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Referer", referer)
	req.Header.Set("Authorization", "Bearer "+creds.Bearer)
	req.Header.Set("Mac-Address", "WEB")
	req.Header.Set("X-Api-Key", creds.APIKey)
	req.Header.Set("X-Request-Timestamp", c.now().UTC().Format(timestampLayout))
}

// coerceTaskID sends numeric ids as JSON numbers, everything else as
// strings, matching what the frontend posts.
func coerceTaskID(taskID string) any {
	if n, err := strconv.ParseInt(strings.TrimSpace(taskID), 10, 64); err == nil {
		return n
	}
	return taskID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
