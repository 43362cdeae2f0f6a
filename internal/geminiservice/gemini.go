package geminiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// --- Gemini API Configuration ---
const (
	geminiAPIURL       = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-09-2025:generateContent?key="
	requestTimeout     = 30 * time.Second
	structuredMimeType = "application/json"
)

// UnknownFoodSentinel is the stable substring the image labeler returns when
// it cannot identify a food. Callers test for it with substring containment,
// so the text must never change.
const UnknownFoodSentinel = "unknown food item"

const visionPrompt = `Identify the primary food item in this image. Respond with only the name of the food (e.g., 'Apple', 'Banana', 'Slice of Pizza'). If you are unsure, say 'unknown food item'.`

// GenerationError reports a failed or empty remote generation call. It is
// the only failure class the pipeline surfaces to its caller; the routing
// layer maps it to a gateway-style response.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces raw model text for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, userPrompt string) (string, error)
}

// ImageLabeler maps an image payload to a short food label. It never fails
// outwardly: every internal failure collapses to the unknown-food sentinel.
type ImageLabeler interface {
	Identify(ctx context.Context, imageDataURL string) string
}

// HTTPDoer lets tests substitute the transport.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// --- Structs for Gemini API Request/Response ---

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries base64 image bytes for vision requests.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type GenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *GeminiSchema `json:"response_schema,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client is a thin Gemini REST client. One synchronous call per operation,
// no retry, no backoff, no caching: a failed call is the caller's decision
// to repeat.
type Client struct {
	apiKey     string
	httpClient HTTPDoer
}

// NewClient builds a Gemini client around the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// NewClientWithHTTP is the test seam: identical to NewClient but with an
// injected transport.
func NewClientWithHTTP(apiKey string, doer HTTPDoer) *Client {
	return &Client{apiKey: apiKey, httpClient: doer}
}

// Generate sends the composed user prompt under the system prompt and the
// recommendation response schema, and returns the raw text of the first
// candidate. Every failure path returns a *GenerationError.
func (c *Client) Generate(ctx context.Context, userPrompt string) (string, error) {
	if c.apiKey == "" {
		log.Error().Msg("GEMINI_API_KEY environment variable is not set")
		return "", &GenerationError{Err: fmt.Errorf("server is not configured for AI recommendations")}
	}

	payload := GeminiPayload{
		SystemInstruction: &GeminiContent{
			Parts: []GeminiPart{{Text: SystemPrompt}},
		},
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   RecommendationSchema,
		},
	}

	text, err := c.call(ctx, payload)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return text, nil
}

// Identify asks the vision model to name the food in the image. Any failure
// (bad payload, remote error, empty response) collapses to the sentinel so
// the pipeline can short-circuit instead of erroring.
func (c *Client) Identify(ctx context.Context, imageDataURL string) string {
	mimeType, data, err := splitDataURL(imageDataURL)
	if err != nil {
		log.Warn().Err(err).Msg("Rejecting malformed image payload")
		return UnknownFoodSentinel
	}

	payload := GeminiPayload{
		Contents: []GeminiContent{
			{Parts: []GeminiPart{
				{Text: visionPrompt},
				{InlineData: &InlineData{MimeType: mimeType, Data: data}},
			}},
		},
	}

	label, err := c.call(ctx, payload)
	if err != nil {
		log.Warn().Err(err).Msg("Food identification call failed")
		return UnknownFoodSentinel
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownFoodSentinel
	}
	return label
}

// call performs the HTTP round trip shared by text and vision requests.
func (c *Client) call(ctx context.Context, payload GeminiPayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, geminiAPIURL+c.apiKey, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned non-200 status: %s, Body: %s", resp.Status, string(body))
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		text := geminiResp.Candidates[0].Content.Parts[0].Text
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("empty payload in Gemini response")
		}
		return text, nil
	}

	return "", fmt.Errorf("no content found in Gemini response")
}

// splitDataURL accepts either a "data:image/jpeg;base64,..." data URL or a
// bare base64 string (assumed JPEG).
func splitDataURL(imageDataURL string) (mimeType, data string, err error) {
	s := strings.TrimSpace(imageDataURL)
	if s == "" {
		return "", "", fmt.Errorf("empty image payload")
	}

	if !strings.HasPrefix(s, "data:") {
		return "image/jpeg", s, nil
	}

	header, rest, found := strings.Cut(s, ",")
	if !found || rest == "" {
		return "", "", fmt.Errorf("malformed data URL")
	}

	mimeType = strings.TrimPrefix(header, "data:")
	mimeType = strings.TrimSuffix(mimeType, ";base64")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType, rest, nil
}
