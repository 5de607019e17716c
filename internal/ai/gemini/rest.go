package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-recommender/internal/ai"
	"github.com/spigell/resume-recommender/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel    = "gemini-2.0-flash"

	defaultMaxLogLength = 200
)

// RESTConfig configures RESTClient. Zero values select the public endpoint,
// the default model and no client-side timeout.
type RESTConfig struct {
	APIKey       string
	Model        string
	Endpoint     string
	Timeout      time.Duration
	MaxLogLength int
	HTTPClient   *http.Client
}

// RESTClient talks to the generateContent endpoint with the API key passed as
// a query parameter.
type RESTClient struct {
	http      *http.Client
	apiKey    string
	model     string
	endpoint  string
	logger    *zap.Logger
	maxLogLen int
}

type restRequest struct {
	Contents         []restContent         `json:"contents"`
	GenerationConfig *restGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []restSafetySetting   `json:"safetySettings,omitempty"`
}

type restContent struct {
	Parts []restPart `json:"parts"`
}

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inline_data,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopK            *float32 `json:"topK,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens int32    `json:"maxOutputTokens,omitempty"`
}

type restSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type restResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type restErrorResponse struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewRESTClient(cfg RESTConfig, logger *zap.Logger) (*RESTClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RESTClient{
		http:      httpClient,
		apiKey:    apiKey,
		model:     model,
		endpoint:  endpoint,
		logger:    logger,
		maxLogLen: maxLogLen,
	}, nil
}

// GenerateContent sends a single request and returns the concatenated text
// parts of the first candidate. Requests are never retried.
func (c *RESTClient) GenerateContent(ctx context.Context, req *ai.Request) (string, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}

	body, err := json.Marshal(buildRESTRequest(req))
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("gemini rest request",
		zap.Int("prompt_length", utf8.RuneCountInString(req.Prompt)),
		zap.Bool("inline_data", req.Inline != nil),
		zap.Int("body_bytes", len(body)),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// url.Error embeds the request URL which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &ai.APIError{StatusCode: resp.StatusCode, Status: resp.Status}
		var errBody restErrorResponse
		if json.Unmarshal(payload, &errBody) == nil && errBody.Error != nil {
			apiErr.Message = errBody.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		return "", apiErr
	}

	var decoded restResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	text := firstCandidateText(&decoded)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini api returned empty response")
	}

	c.logger.Debug("gemini rest response",
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(text, c.maxLogLen)),
	)

	return text, nil
}

func (c *RESTClient) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func buildRESTRequest(req *ai.Request) *restRequest {
	parts := []restPart{{Text: req.Prompt}}
	if req.Inline != nil {
		parts = append(parts, restPart{InlineData: &restInlineData{
			MIMEType: req.Inline.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Inline.Data),
		}})
	}

	out := &restRequest{Contents: []restContent{{Parts: parts}}}

	gen := req.Generation
	if gen.Temperature != nil || gen.TopK != nil || gen.TopP != nil || gen.MaxOutputTokens > 0 {
		out.GenerationConfig = &restGenerationConfig{
			Temperature:     gen.Temperature,
			TopK:            gen.TopK,
			TopP:            gen.TopP,
			MaxOutputTokens: gen.MaxOutputTokens,
		}
	}

	for _, s := range req.Safety {
		out.SafetySettings = append(out.SafetySettings, restSafetySetting{
			Category:  s.Category,
			Threshold: s.Threshold,
		})
	}

	return out
}

func firstCandidateText(resp *restResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}

	return builder.String()
}
