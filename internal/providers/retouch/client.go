// Package retouch calls the external generative-image service that turns an
// uploaded real-estate photo into a virtually staged version. One call per
// attempt, no automatic retry; every failure is classified into a closed set
// of error kinds at this boundary.
package retouch

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

	"github.com/rs/zerolog"

	"homestaging/internal/infra"
)

// Request carries one photo to transform.
type Request struct {
	Data      []byte
	MIME      string
	RequestID string
}

// Retoucher is the contract the job tracker invokes. Implementations perform
// a single request/response transform with no streaming.
type Retoucher interface {
	Retouch(ctx context.Context, req Request) ([]byte, error)
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Prompt     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent API. The staging
// prompt and model name are configuration, not behavior.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	prompt     string
	httpClient *http.Client
	logger     *infra.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini retouch client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with a sensible timeout is created.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("retouch: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		prompt:     strings.TrimSpace(opts.Prompt),
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Retouch submits the photo with the staging instruction and returns the
// transformed image bytes. Failures come back as *Error.
func (c *Client) Retouch(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(err)
	}
	if len(req.Data) == 0 {
		return nil, newError(KindFatal, "no image data supplied", nil)
	}

	mime := req.MIME
	if mime == "" {
		mime = "image/jpeg"
	}

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(req.Data),
				}},
				{Text: c.prompt},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}

	var response geminiGenerateContentResponse
	if err := c.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	for _, candidate := range response.Candidates {
		if strings.EqualFold(candidate.FinishReason, "SAFETY") ||
			strings.EqualFold(candidate.FinishReason, "PROHIBITED_CONTENT") {
			return nil, newError(KindBlocked, "the request was rejected by the provider's safety filters", nil)
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, newError(KindFatal, fmt.Sprintf("decode inline data: %v", err), err)
			}
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Int("bytes", len(data)).
				Msg("retouch: received staged image")
			return data, nil
		}
	}

	return nil, newError(KindEmptyResponse, "", nil)
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return newError(KindFatal, fmt.Sprintf("marshal request: %v", err), err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return newError(KindFatal, fmt.Sprintf("create request: %v", err), err)
	}
	q := httpReq.URL.Query()
	q.Set("key", c.apiKey)
	httpReq.URL.RawQuery = q.Encode()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return classifyStatus(resp.StatusCode, apiErr.Error.Message, nil)
		}
		data, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, strings.TrimSpace(string(data)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindFatal, fmt.Sprintf("decode response: %v", err), err)
	}
	return nil
}

var _ Retoucher = (*Client)(nil)
