// Package supadata fetches YouTube transcripts from the Supadata API and
// classifies every failure into a domain.FetchError.
package supadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cwygoda/transcriber/internal/domain"
)

const (
	DefaultBaseURL = "https://api.supadata.ai/v1"

	FormatText     = "text"
	FormatSegments = "segments"

	maxBodyBytes = 32 << 20
)

// Client calls the Supadata transcript endpoint.
type Client struct {
	baseURL   string
	apiKey    string
	format    string
	userAgent string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithFormat selects plain text or segment responses.
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		format:    FormatText,
		userAgent: "transcriber/1.0",
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// segment is one timed chunk when text=false.
type segment struct {
	Text     string  `json:"text"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
	Lang     string  `json:"lang"`
}

type transcriptResponse struct {
	Content        json.RawMessage `json:"content"`
	Lang           string          `json:"lang"`
	AvailableLangs []string        `json:"availableLangs"`
	JobID          string          `json:"jobId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// Fetch retrieves the transcript for an entry. All errors are *domain.FetchError.
func (c *Client) Fetch(ctx context.Context, e domain.Entry, language string) (domain.TranscriptResult, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonUnauthorized, Detail: "api key is empty"}
	}

	req, err := c.newRequest(ctx, e.URL, language)
	if err != nil {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonNetwork, Detail: "build request", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonNetwork, Status: resp.StatusCode, Detail: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return domain.TranscriptResult{}, classify(resp.StatusCode, body)
	}

	var tr transcriptResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonNetwork, Status: resp.StatusCode, Detail: "decode response", Err: err}
	}
	if tr.JobID != "" && len(tr.Content) == 0 {
		return domain.TranscriptResult{}, &domain.FetchError{
			Kind:   domain.ReasonTranscriptUnavailable,
			Status: resp.StatusCode,
			Detail: "transcript queued as job " + tr.JobID,
		}
	}

	text, err := normalizeContent(tr.Content)
	if err != nil {
		return domain.TranscriptResult{}, &domain.FetchError{Kind: domain.ReasonNetwork, Status: resp.StatusCode, Detail: "decode content", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return domain.TranscriptResult{}, &domain.FetchError{
			Kind:   domain.ReasonTranscriptUnavailable,
			Status: resp.StatusCode,
			Detail: "empty transcript",
		}
	}

	lang := tr.Lang
	if lang == "" {
		lang = language
	}
	return domain.TranscriptResult{Entry: e, Text: text, Language: lang}, nil
}

func (c *Client) newRequest(ctx context.Context, videoURL, language string) (*http.Request, error) {
	q := url.Values{}
	q.Set("url", videoURL)
	if language != "" {
		q.Set("lang", language)
	}
	q.Set("text", fmt.Sprintf("%t", c.format != FormatSegments))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/youtube/transcript?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return req, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// normalizeContent turns either a plain string or a segment list into one
// text blob. Segment texts are joined by newlines; timing is dropped.
func normalizeContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var segments []segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return "", errors.New("content is neither text nor segments")
	}
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n"), nil
}

// classify maps a non-200 response to a fetch error kind.
func classify(status int, body []byte) *domain.FetchError {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	detail := er.Message
	if er.Details != "" {
		if detail != "" {
			detail += ": "
		}
		detail += er.Details
	}
	if detail == "" {
		detail = strings.TrimSpace(string(body))
		if len(detail) > 200 {
			detail = detail[:200]
		}
	}
	if detail == "" {
		detail = http.StatusText(status)
	}

	fe := &domain.FetchError{Status: status, Detail: detail}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, er.Error == "unauthorized":
		fe.Kind = domain.ReasonUnauthorized
	case status == http.StatusTooManyRequests, er.Error == "limit-exceeded":
		fe.Kind = domain.ReasonRateLimited
	case status >= 500:
		fe.Kind = domain.ReasonNetwork
	default:
		// 400, 404, 202 (queued) and 206 are about this video only.
		fe.Kind = domain.ReasonTranscriptUnavailable
	}
	return fe
}
