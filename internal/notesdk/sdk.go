// Package notesdk is the HTTP client of the note server.
package notesdk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/importer"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/synchronizer"
	"github.com/openmined/syftnotes/internal/version"
)

const (
	v1Commands = "/api/v1/commands"
	v1Events   = "/api/v1/events"
	v1Notes    = "/api/v1/notes"
	v1Note     = "/api/v1/notes/{id}"
	healthz    = "/healthz"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryCount    = 3
	defaultRetryInterval = 1 * time.Second
)

var (
	_ command.Executor     = (*Client)(nil)
	_ synchronizer.History = (*Client)(nil)
	_ importer.Source      = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.SetTimeout(d)
	}
}

// WithRetry sets how often idempotent requests are retried on transport
// errors. Commands are never retried.
func WithRetry(count int, interval time.Duration) Option {
	return func(c *Client) {
		c.retryCount = count
		c.retryInterval = interval
	}
}

// Client talks to a note server. It executes commands against the remote log
// and reads it back for the importer and the merging strategy.
type Client struct {
	client        *req.Client
	baseURL       string
	retryCount    int
	retryInterval time.Duration
}

// New creates a new client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderSyftVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	c := &Client{
		client:        client,
		baseURL:       baseURL,
		retryCount:    defaultRetryCount,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections
func (c *Client) Close() {
	c.client.GetTransport().CloseIdleConnections()
}

func (c *Client) get(ctx context.Context) *req.Request {
	return c.client.R().
		SetContext(ctx).
		SetRetryCount(c.retryCount).
		SetRetryFixedInterval(c.retryInterval)
}

// Execute posts a command to the server log.
func (c *Client) Execute(ctx context.Context, cmd command.Command) (*command.Result, error) {
	env, err := command.Wrap(cmd)
	if err != nil {
		return nil, err
	}

	var resp CommandResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(env).
		SetSuccessResult(&resp).
		Post(v1Commands)

	if err := handleAPIError(res, err, "execute "+string(cmd.Kind())); err != nil {
		return nil, err
	}

	return &command.Result{Event: resp.Event}, nil
}

// EventsSince returns up to limit records appended after seq.
func (c *Client) EventsSince(ctx context.Context, seq int64, limit int) (*EventsResponse, error) {
	if seq < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCursor, seq)
	}

	var resp EventsResponse
	res, err := c.get(ctx).
		SetQueryParam("after", strconv.FormatInt(seq, 10)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetSuccessResult(&resp).
		Get(v1Events)

	if err := handleAPIError(res, err, "events"); err != nil {
		return nil, err
	}

	return &resp, nil
}

// EntriesSince reads the server log for an importer.
func (c *Client) EntriesSince(ctx context.Context, seq int64, limit int) ([]importer.Entry, error) {
	resp, err := c.EventsSince(ctx, seq, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]importer.Entry, len(resp.Events))
	for i, rec := range resp.Events {
		entries[i] = importer.Entry{Seq: rec.Seq, Event: rec.Event}
	}
	return entries, nil
}

// Note returns the current projection of a created note.
func (c *Client) Note(ctx context.Context, noteID string) (note.Note, error) {
	var view NoteView
	res, err := c.get(ctx).
		SetPathParam("id", noteID).
		SetSuccessResult(&view).
		Get(v1Note)

	if err := handleAPIError(res, err, "note "+noteID); err != nil {
		return note.Note{}, err
	}

	return view.ToNote(), nil
}

// NoteAt projects a note of the server log up to revision. Revision 0 is the
// empty note.
func (c *Client) NoteAt(ctx context.Context, noteID string, revision int) (note.Note, error) {
	var view NoteView
	res, err := c.get(ctx).
		SetPathParam("id", noteID).
		SetQueryParam("revision", strconv.Itoa(revision)).
		SetSuccessResult(&view).
		Get(v1Note)

	if err := handleAPIError(res, err, fmt.Sprintf("note %s@%d", noteID, revision)); err != nil {
		return note.Note{}, err
	}

	return view.ToNote(), nil
}

// Notes lists the current projection of every note on the server.
func (c *Client) Notes(ctx context.Context) ([]note.Note, error) {
	var resp NotesResponse
	res, err := c.get(ctx).
		SetSuccessResult(&resp).
		Get(v1Notes)

	if err := handleAPIError(res, err, "notes"); err != nil {
		return nil, err
	}

	notes := make([]note.Note, len(resp.Notes))
	for i, v := range resp.Notes {
		notes[i] = v.ToNote()
	}
	return notes, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&resp).
		Get(healthz)

	if err := handleAPIError(res, err, "health"); err != nil {
		return nil, err
	}

	return &resp, nil
}
