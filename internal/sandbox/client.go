// Package sandbox submits programs to a Judge0 execution service.
package sandbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pavelanni/mockinterview/internal/lang"
)

// DefaultURL is the free public Judge0 instance. It needs no API key.
const DefaultURL = "https://ce.judge0.com"

// APIError is returned when Judge0 answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Judge0 API error: %d", e.StatusCode)
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
}

type submissionResponse struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Status        Status  `json:"status"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
}

// Client talks to a Judge0 instance using synchronous, base64-encoded submissions.
type Client struct {
	baseURL    string
	authHeader string
	authToken  string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	cache      Cache
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each submission, including the time Judge0 spends running it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithAuth sends token in header on every request (X-Auth-Token for
// self-hosted Judge0, X-RapidAPI-Key for the RapidAPI edition).
func WithAuth(header, token string) Option {
	return func(c *Client) {
		c.authHeader = header
		c.authToken = token
	}
}

// WithRateLimit limits submissions to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache stores deterministic results in cache.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// New creates a Judge0 client. An empty baseURL selects DefaultURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs source with the profile's Judge0 language and waits for the result.
// Transport failures and non-2xx answers are returned as errors; program
// failures are reported through the result's status.
func (c *Client) Execute(ctx context.Context, source string, profile lang.Profile) (*Result, error) {
	key := cacheKey(profile.ID, source)
	if c.cache != nil {
		res, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("sandbox cache lookup failed", "error", err)
		} else if ok {
			slog.Debug("sandbox cache hit", "language_id", profile.ID)
			return res, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for sandbox rate limit: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(submission{
		SourceCode: base64.StdEncoding.EncodeToString([]byte(source)),
		LanguageID: profile.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/submissions?base64_encoded=true&wait=true", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" && c.authToken != "" {
		req.Header.Set(c.authHeader, c.authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Judge0 API error", "status", resp.StatusCode, "body", string(text))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	var raw submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode Judge0 response: %w", err)
	}

	res, err := decode(raw)
	if err != nil {
		return nil, err
	}

	slog.Debug("executed program via Judge0",
		"language_id", profile.ID,
		"status", res.Status.ID,
		"latency", time.Since(start),
		"time", res.Time,
		"memory", res.Memory,
	)

	if c.cache != nil && res.deterministic() {
		if err := c.cache.Set(ctx, key, res); err != nil {
			slog.Warn("sandbox cache store failed", "error", err)
		}
	}
	return res, nil
}

func decode(raw submissionResponse) (*Result, error) {
	res := &Result{Status: raw.Status}
	fields := []struct {
		name string
		in   *string
		out  *string
	}{
		{"stdout", raw.Stdout, &res.Stdout},
		{"stderr", raw.Stderr, &res.Stderr},
		{"compile_output", raw.CompileOutput, &res.CompileOutput},
		{"message", raw.Message, &res.Message},
	}
	for _, f := range fields {
		s, err := fromBase64(f.in)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		*f.out = strings.TrimSpace(s)
	}
	if raw.Time != nil {
		res.Time = *raw.Time
	}
	if raw.Memory != nil {
		res.Memory = *raw.Memory
	}
	return res, nil
}

func fromBase64(s *string) (string, error) {
	if s == nil || *s == "" {
		return "", nil
	}
	// Judge0 wraps long base64 payloads with newlines.
	b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(*s, "\n", ""))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cacheKey(languageID int, source string) string {
	h := sha256.Sum256([]byte(strconv.Itoa(languageID) + ":" + source))
	return hex.EncodeToString(h[:])
}
