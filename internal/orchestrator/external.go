package orchestrator

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gqlregistry/registry-core/internal/pkg/httpx"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// SignatureHeader is the HMAC header the external composer endpoint
// validates against its shared secret (§6).
const SignatureHeader = "x-hive-signature"

// ExternalDelegate wraps an Orchestrator variant, sending composeAndValidate
// requests to a user-controlled HTTP endpoint instead of composing
// in-process whenever Options.External is set (§4.2).
type ExternalDelegate struct {
	Fallback   Orchestrator
	httpClient *http.Client
	log        *logger.Logger
	maxRetries int
}

func NewExternalDelegate(log *logger.Logger, fallback Orchestrator) *ExternalDelegate {
	return &ExternalDelegate{
		Fallback:   fallback,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("component", "ExternalDelegate"),
		maxRetries: 3,
	}
}

type externalRequestSchema struct {
	Name string `json:"name"`
	SDL  string `json:"sdl"`
	URL  string `json:"url,omitempty"`
}

type externalRequest struct {
	Schemas []externalRequestSchema `json:"schemas"`
	Type    string                  `json:"type"`
}

type externalContractResult struct {
	ID         string             `json:"id"`
	SDL        string             `json:"sdl"`
	Supergraph string             `json:"supergraph,omitempty"`
	Errors     []CompositionError `json:"errors"`
}

type externalResponse struct {
	SDL        string                   `json:"sdl"`
	Supergraph string                   `json:"supergraph,omitempty"`
	Tags       []string                 `json:"tags,omitempty"`
	Errors     []CompositionError       `json:"errors"`
	Contracts  []externalContractResult `json:"contracts,omitempty"`
}

func (d *ExternalDelegate) ComposeAndValidate(ctx context.Context, schemas []Schema, opts Options) (*Result, error) {
	if opts.External == nil {
		return d.Fallback.ComposeAndValidate(ctx, schemas, opts)
	}

	wire := externalRequest{Type: compositionType(opts)}
	for _, s := range schemas {
		wire.Schemas = append(wire.Schemas, externalRequestSchema{Name: s.Name, SDL: s.SDL, URL: s.URL})
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: encode external request: %w", err)
	}

	resp, err := d.doWithRetry(ctx, opts.External, body)
	if err != nil {
		return nil, &OrchestratorUnavailable{Endpoint: opts.External.Endpoint, Err: err}
	}

	var out externalResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, &OrchestratorUnavailable{Endpoint: opts.External.Endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}

	result := &Result{
		SDL:        out.SDL,
		Supergraph: out.Supergraph,
		Tags:       out.Tags,
		Errors:     out.Errors,
	}
	for _, c := range out.Contracts {
		result.Contracts = append(result.Contracts, ContractResult{
			ID: c.ID, SDL: c.SDL, Supergraph: c.Supergraph, Errors: c.Errors,
		})
	}
	return result, nil
}

func compositionType(opts Options) string {
	if opts.Native {
		return "federation"
	}
	return "stitching"
}

func (d *ExternalDelegate) doWithRetry(ctx context.Context, ext *ExternalComposition, body []byte) ([]byte, error) {
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, raw, err := d.doOnce(ctx, ext, body)
		if err == nil {
			return raw, nil
		}

		if !httpx.IsRetryableError(err) || attempt == d.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		d.log.Warn("external composer request retrying",
			"endpoint", ext.Endpoint,
			"attempt", attempt+1,
			"max_retries", d.maxRetries,
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("external composer http %d: %s", e.status, e.body)
}
func (e *httpStatusError) HTTPStatusCode() int { return e.status }

func (d *ExternalDelegate) doOnce(ctx context.Context, ext *ExternalComposition, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ext.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signBody(ext.Secret, body))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 2000 {
			msg = msg[:2000] + "..."
		}
		return resp, raw, &httpStatusError{status: resp.StatusCode, body: msg}
	}

	return resp, raw, nil
}

// signBody computes the HMAC-SHA256 signature carried in SignatureHeader, the
// same construction the composer endpoint itself validates against its copy
// of the shared secret (§6).
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates an inbound signature against the shared secret
// — symmetric to signBody; exposed for a composer implementation this
// registry hosts itself to validate incoming requests.
func VerifySignature(secret, signature string, body []byte) bool {
	expected := signBody(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
