// Package controlplane is the client of the local control plane of a running
// daemon.
package controlplane

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/version"
)

const defaultTimeout = 30 * time.Second

var (
	ErrDaemonNotRunning = errors.New("daemon is not running")
	ErrUnauthorized     = errors.New("control plane token rejected")
)

// APIError is an error response of the control plane.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type Client struct {
	client *req.Client
	// stream has no timeout, event streams stay open
	stream *req.Client
}

func New(baseURL string, token string) *Client {
	c := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetUserAgent("SyftNotes/" + version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if token != "" {
		c.SetCommonBearerAuthToken(token)
	}
	return &Client{client: c, stream: c.Clone().SetTimeout(0)}
}

func (c *Client) Status(ctx context.Context) (*handlers.StatusResponse, error) {
	var resp handlers.StatusResponse
	res, err := c.client.R().SetContext(ctx).SetSuccessResult(&resp).Get("/v1/status")
	if err := handleError(res, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync runs a pass in the daemon and waits for its report.
func (c *Client) Sync(ctx context.Context) (*handlers.SyncReport, error) {
	var resp handlers.SyncReport
	res, err := c.client.R().SetContext(ctx).SetSuccessResult(&resp).Post("/v1/sync")
	if err := handleError(res, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) LastSync(ctx context.Context) (*handlers.SyncReport, error) {
	var resp handlers.SyncReport
	res, err := c.client.R().SetContext(ctx).SetSuccessResult(&resp).Get("/v1/sync/last")
	if err := handleError(res, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Conflicts(ctx context.Context) ([]handlers.ConflictSummary, error) {
	var resp handlers.ConflictListResponse
	res, err := c.client.R().SetContext(ctx).SetSuccessResult(&resp).Get("/v1/conflicts")
	if err := handleError(res, err); err != nil {
		return nil, err
	}
	return resp.Conflicts, nil
}

func (c *Client) Conflict(ctx context.Context, noteID string) (*handlers.ConflictDetail, error) {
	var resp handlers.ConflictDetail
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", noteID).
		SetSuccessResult(&resp).
		Get("/v1/conflicts/{id}")
	if err := handleError(res, err); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve records the side to keep. The daemon applies it on its next pass.
func (c *Client) Resolve(ctx context.Context, noteID string, choice merge.Choice) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", noteID).
		SetBody(handlers.ResolveRequest{Choice: choice}).
		Post("/v1/conflicts/{id}/resolve")
	return handleError(res, err)
}

// Watch calls fn for every conflict change until ctx is done or the daemon
// closes the stream.
func (c *Client) Watch(ctx context.Context, fn func(handlers.ConflictEventMessage)) error {
	res, err := c.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		DisableAutoReadResponse().
		Get("/v1/conflicts/watch")
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return handleError(res, err)
	}
	defer res.Body.Close()

	if res.IsErrorState() {
		var apiErr APIError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		apiErr.Status = res.StatusCode
		return &apiErr
	}

	var event string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "conflict":
			var msg handlers.ConflictEventMessage
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &msg); err != nil {
				return fmt.Errorf("decode conflict event: %w", err)
			}
			fn(msg)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func handleError(resp *req.Response, requestErr error) error {
	if requestErr != nil {
		return fmt.Errorf("%w: %w", ErrDaemonNotRunning, requestErr)
	}
	if !resp.IsErrorState() {
		return nil
	}

	apiErr, ok := resp.ErrorResult().(*APIError)
	if !ok || apiErr == nil || apiErr.Code == "" {
		apiErr = &APIError{Code: handlers.ErrCodeUnknownError, Message: http.StatusText(resp.StatusCode)}
	}
	apiErr.Status = resp.StatusCode

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	}
	return apiErr
}
