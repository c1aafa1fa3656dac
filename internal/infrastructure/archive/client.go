package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"radreject/internal/bootstrap/logging"
	"radreject/internal/domain/reject"
	"radreject/internal/errs"
	"radreject/internal/ports"
)

const (
	DefaultTimeout         = 20 * time.Second
	DefaultMaxRetries      = 2
	DefaultInitialInterval = 500 * time.Millisecond

	// errorBodyLimit caps how much of a failed response is kept in the error.
	errorBodyLimit = 1024
)

// StatusError is returned for any HTTP status >= 400.
type StatusError struct {
	Server     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("archive %s: GET %s: status %d", e.Server, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("archive %s: GET %s: status %d: %s", e.Server, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether repeating the request could succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// NotFound reports a resource removed from the archive.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type Options struct {
	Timeout              time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	// Transport is wrapped with otelhttp; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client speaks the Orthanc-style REST surface: /studies, /studies/{id}, /series/{id}.
type Client struct {
	httpClient      *http.Client
	timeout         time.Duration
	maxRetries      int
	initialInterval time.Duration
}

var _ ports.ArchiveClient = (*Client)(nil)

func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return NewClientWithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(base)}, opts)
}

// NewClientWithHTTPClient uses client as is. Timeouts are applied per call
// through the request context, so client.Timeout may stay zero.
func NewClientWithHTTPClient(client *http.Client, opts Options) *Client {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = DefaultInitialInterval
	}
	return &Client{
		httpClient:      client,
		timeout:         opts.Timeout,
		maxRetries:      opts.MaxRetries,
		initialInterval: opts.RetryInitialInterval,
	}
}

// Tag values stay raw so one badly typed tag only invalidates its own study
// or series instead of failing the decode of the whole response.
type studyResponse struct {
	ID            string                     `json:"ID"`
	MainDicomTags map[string]json.RawMessage `json:"MainDicomTags"`
	Series        json.RawMessage            `json:"Series"`
}

type seriesResponse struct {
	ID            string                     `json:"ID"`
	MainDicomTags map[string]json.RawMessage `json:"MainDicomTags"`
	Instances     json.RawMessage            `json:"Instances"`
}

// DecodeError reports a response body that is not the expected JSON shape.
type DecodeError struct {
	Server string
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("archive %s: decode %s: %v", e.Server, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (c *Client) ListStudies(ctx context.Context, server ports.ArchiveServer) ([]string, error) {
	var ids []string
	if err := c.getJSON(ctx, server, "/studies", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetStudy returns the raw tags; StudyDate validation is left to the caller.
// A study whose body or tags have the wrong JSON type fails with an error
// matching reject.ErrMalformedTag.
func (c *Client) GetStudy(ctx context.Context, server ports.ArchiveServer, studyID string) (reject.ArchiveStudy, error) {
	var resp studyResponse
	if err := c.getJSON(ctx, server, "/studies/"+url.PathEscape(studyID), &resp); err != nil {
		return reject.ArchiveStudy{}, malformedBody(err)
	}
	studyDate, err := stringTag(resp.MainDicomTags["StudyDate"], "StudyDate")
	if err != nil {
		return reject.ArchiveStudy{}, err
	}
	uid, err := stringTag(resp.MainDicomTags["StudyInstanceUID"], "StudyInstanceUID")
	if err != nil {
		return reject.ArchiveStudy{}, err
	}
	seriesIDs, err := idList(resp.Series, "Series")
	if err != nil {
		return reject.ArchiveStudy{}, err
	}

	id := resp.ID
	if id == "" {
		id = studyID
	}
	return reject.ArchiveStudy{
		ID:               id,
		StudyDate:        strings.TrimSpace(studyDate),
		StudyInstanceUID: uid,
		SeriesIDs:        seriesIDs,
	}, nil
}

func (c *Client) GetSeries(ctx context.Context, server ports.ArchiveServer, seriesID string) (reject.ArchiveSeries, error) {
	var resp seriesResponse
	if err := c.getJSON(ctx, server, "/series/"+url.PathEscape(seriesID), &resp); err != nil {
		return reject.ArchiveSeries{}, malformedBody(err)
	}
	modality, err := stringTag(resp.MainDicomTags["Modality"], "Modality")
	if err != nil {
		return reject.ArchiveSeries{}, err
	}
	instances, err := idList(resp.Instances, "Instances")
	if err != nil {
		return reject.ArchiveSeries{}, err
	}

	id := resp.ID
	if id == "" {
		id = seriesID
	}
	return reject.ArchiveSeries{
		ID:          id,
		Modality:    modality,
		InstanceIDs: instances,
	}, nil
}

// malformedBody marks an undecodable study or series body as a data error.
// Transport and status errors pass through unchanged.
func malformedBody(err error) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return fmt.Errorf("%w: %w", reject.ErrMalformedTag, err)
	}
	return err
}

// stringTag treats an absent or null tag as empty and any non-string value as malformed.
func stringTag(raw json.RawMessage, name string) (string, error) {
	if isAbsent(raw) {
		return "", nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%w: %s is not a string: %s", reject.ErrMalformedTag, name, raw)
	}
	return value, nil
}

func idList(raw json.RawMessage, name string) ([]string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s is not a list of ids", reject.ErrMalformedTag, name)
	}
	return ids, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func (c *Client) getJSON(ctx context.Context, server ports.ArchiveServer, path string, out any) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	base := strings.TrimRight(strings.TrimSpace(server.BaseURL), "/")
	if base == "" {
		return fmt.Errorf("archive %s: base url is required", server.Name)
	}
	target := base + path

	timeout := c.timeout
	if server.Timeout > 0 {
		timeout = server.Timeout
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = 10 * c.initialInterval

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "archive.client"),
		slog.String("server", server.Name),
		slog.String("path", path),
	)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.fetch(ctx, server, target, path, timeout, out)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logging.Warn(logCtx, "archive request failed, retrying",
				slog.Any("err", errs.Loggable(err)),
				slog.Duration("retry_in", next),
			)
		}),
	)
	return err
}

func (c *Client) fetch(ctx context.Context, server ports.ArchiveServer, target string, path string, timeout time.Duration, out any) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(errs.Wrapf(err, "archive %s: build request %s", server.Name, path))
	}
	req.Header.Set("Accept", "application/json")
	if server.Username != "" {
		req.SetBasicAuth(server.Username, server.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(errs.Wrapf(err, "archive %s: GET %s", server.Name, path))
		}
		return errs.Wrapf(err, "archive %s: GET %s", server.Name, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		statusErr := &StatusError{
			Server:     server.Name,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		if statusErr.Retryable() {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(&DecodeError{Server: server.Name, Path: path, Err: err})
	}
	return nil
}
