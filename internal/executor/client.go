// Package executor talks to the external sandboxed code-runner over its
// REST API. It owns the language-to-runtime mapping and the base64 text
// encoding the sandbox requires on the wire.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/metrics"
)

const (
	// DefaultMaxPollAttempts bounds the poll loop before a timeout.
	DefaultMaxPollAttempts = 30

	// DefaultPollDelay is the fixed sleep between poll attempts.
	DefaultPollDelay = 1 * time.Second
)

// Client is an HTTP client for the sandbox execution service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a sandbox client for the given base URL.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit sends one execution to the sandbox and returns its token.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload, err := c.encodePayload(req)
	if err != nil {
		return "", err
	}

	var resp tokenResponse
	if err := c.post(ctx, "/submissions?base64_encoded=true&wait=false", payload, &resp); err != nil {
		metrics.SandboxFailures.Inc()
		return "", fmt.Errorf("%w: %v", domain.ErrRemoteSubmit, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: empty token in response", domain.ErrRemoteSubmit)
	}

	c.logger.Debug("Submitted execution to sandbox",
		zap.String("token", resp.Token),
		zap.String("language", string(req.Language)),
	)
	return resp.Token, nil
}

// SubmitBatch sends several executions at once and returns their tokens
// in submission order. The remote API may return either a bare array of
// token objects or an object wrapping one; both shapes are accepted.
func (c *Client) SubmitBatch(ctx context.Context, reqs []SubmitRequest) ([]string, error) {
	payloads := make([]submissionPayload, 0, len(reqs))
	for _, req := range reqs {
		p, err := c.encodePayload(req)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, p)
	}

	body, err := c.postRaw(ctx, "/submissions/batch?base64_encoded=true", batchPayload{Submissions: payloads})
	if err != nil {
		metrics.SandboxFailures.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteSubmit, err)
	}

	var acks []tokenResponse
	if err := json.Unmarshal(body, &acks); err != nil {
		var wrapped struct {
			Submissions []tokenResponse `json:"submissions"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: unexpected batch response shape: %v", domain.ErrRemoteSubmit, err)
		}
		acks = wrapped.Submissions
	}

	tokens := make([]string, 0, len(acks))
	for _, a := range acks {
		if a.Token == "" {
			return nil, fmt.Errorf("%w: empty token in batch response", domain.ErrRemoteSubmit)
		}
		tokens = append(tokens, a.Token)
	}
	return tokens, nil
}

// GetResult fetches the current result for a token.
func (c *Client) GetResult(ctx context.Context, token string) (*ExecutionResult, error) {
	body, err := c.get(ctx, "/submissions/"+url.PathEscape(token)+"?base64_encoded=true")
	if err != nil {
		metrics.SandboxFailures.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteFetch, err)
	}

	var result ExecutionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decode result: %v", domain.ErrRemoteFetch, err)
	}
	decodeResult(&result)
	return &result, nil
}

// GetBatchResults fetches current results for several tokens. The result
// slice follows the order of the token list.
func (c *Client) GetBatchResults(ctx context.Context, tokens []string) ([]ExecutionResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	path := "/submissions/batch?tokens=" + url.QueryEscape(strings.Join(tokens, ",")) + "&base64_encoded=true"
	body, err := c.get(ctx, path)
	if err != nil {
		metrics.SandboxFailures.Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteFetch, err)
	}

	var results []ExecutionResult
	if err := json.Unmarshal(body, &results); err != nil {
		var wrapped batchResultsEnvelope
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: unexpected batch response shape: %v", domain.ErrRemoteFetch, err)
		}
		results = wrapped.Submissions
	}

	for i := range results {
		decodeResult(&results[i])
	}
	return results, nil
}

// PollUntilDone fetches a token's result until its status is terminal.
// It fails with ErrPollTimeout after maxAttempts fetches.
func (c *Client) PollUntilDone(ctx context.Context, token string, maxAttempts int, delay time.Duration) (*ExecutionResult, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.GetResult(ctx, token)
		if err != nil {
			return nil, err
		}
		if result.Status.ID > 2 {
			return result, nil
		}
	}

	return nil, fmt.Errorf("%w: token %s after %d attempts", domain.ErrPollTimeout, token, maxAttempts)
}

// PollBatchUntilDone polls a set of tokens, re-fetching only those still
// incomplete, and returns results in the original token order. When the
// attempt bound is exhausted it performs one final best-effort fetch for
// whatever remains instead of failing the batch.
func (c *Client) PollBatchUntilDone(ctx context.Context, tokens []string, maxAttempts int, delay time.Duration) ([]ExecutionResult, error) {
	results := make(map[string]ExecutionResult, len(tokens))
	pending := append([]string(nil), tokens...)

	for attempt := 0; attempt < maxAttempts && len(pending) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		batch, err := c.GetBatchResults(ctx, pending)
		if err != nil {
			return nil, err
		}

		// Match results to requested tokens by the token field. The batch
		// endpoint does not guarantee one entry per requested token, nor
		// the request order; anything unmatched stays pending.
		byToken := indexByToken(batch)
		var stillPending []string
		for _, token := range pending {
			r, ok := byToken[token]
			if !ok {
				stillPending = append(stillPending, token)
				continue
			}
			results[token] = r
			if r.Status.ID <= 2 {
				stillPending = append(stillPending, token)
			}
		}
		pending = stillPending
	}

	if len(pending) > 0 {
		c.logger.Warn("Batch poll attempts exhausted, taking last known results",
			zap.Int("pending", len(pending)),
		)
		if batch, err := c.GetBatchResults(ctx, pending); err == nil {
			byToken := indexByToken(batch)
			for _, token := range pending {
				if r, ok := byToken[token]; ok {
					results[token] = r
				}
			}
		}
	}

	ordered := make([]ExecutionResult, 0, len(tokens))
	for _, token := range tokens {
		ordered = append(ordered, results[token])
	}
	return ordered, nil
}

func indexByToken(batch []ExecutionResult) map[string]ExecutionResult {
	byToken := make(map[string]ExecutionResult, len(batch))
	for _, r := range batch {
		if r.Token != "" {
			byToken[r.Token] = r
		}
	}
	return byToken
}

func (c *Client) encodePayload(req SubmitRequest) (submissionPayload, error) {
	runtimeID, err := RuntimeID(req.Language)
	if err != nil {
		return submissionPayload{}, err
	}
	return submissionPayload{
		SourceCode:     encodeB64(req.Code),
		LanguageID:     runtimeID,
		Stdin:          encodeB64(req.Stdin),
		ExpectedOutput: encodeB64(req.ExpectedOutput),
		CPUTimeLimit:   req.CPUTimeLimit,
		MemoryLimit:    req.MemoryLimitKB,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := c.postRaw(ctx, path, payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postRaw(ctx context.Context, path string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("sandbox returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// decodeResult decodes the base64 text fields of a sandbox result in place.
func decodeResult(r *ExecutionResult) {
	r.Stdout = decodeB64(r.Stdout)
	r.Stderr = decodeB64(r.Stderr)
	r.CompileOutput = decodeB64(r.CompileOutput)
	r.Message = decodeB64(r.Message)
}

func encodeB64(s string) string {
	if s == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decodeB64 decodes a base64 payload, passing raw text through unchanged
// when it is not valid base64. Some sandbox builds emit trailing newlines
// inside the encoded text, so whitespace is stripped first.
func decodeB64(s string) string {
	if s == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return s
	}
	return string(decoded)
}
