// Package llmclient talks to a vision-capable Ollama-compatible model server
// to decide whether an image matches a natural-language content description.
// The wire format and retry policy follow SPEC_FULL.md §5; the magic-byte and
// MIME validation are translated from original_source/src/validation/llm.rs.
package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrInvalidImage marks an image that failed extension or magic-byte
// validation — callers must not retry these, they will never succeed.
type ErrInvalidImage struct {
	Detail string
}

func (e *ErrInvalidImage) Error() string { return "invalid image: " + e.Detail }

// Client validates that an image's visual content matches a description.
type Client interface {
	ValidateContent(ctx context.Context, imagePath, description string) (accepted bool, raw string, err error)
}

// HTTPClient is the production Client, backed by an Ollama-style /api/chat
// endpoint.
type HTTPClient struct {
	httpClient *http.Client
	apiURL     string
	model      string
	maxRetries uint64
	log        *zap.SugaredLogger
}

// New builds an HTTPClient. timeout bounds each individual HTTP attempt, not
// the overall retry sequence.
func New(apiURL, model string, timeout time.Duration, log *zap.SugaredLogger) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		model:      model,
		maxRetries: 3,
		log:        log,
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatResponseMessage `json:"message"`
	Done    bool                `json:"done"`
}

// ValidateContent reads and encodes the image, sends it with the
// description prompt, and reports whether the model's verdict is
// "ACCEPTED" (case-insensitive, leading/trailing whitespace ignored).
func (c *HTTPClient) ValidateContent(ctx context.Context, imagePath, description string) (bool, string, error) {
	encoded, err := readAndEncodeImage(imagePath)
	if err != nil {
		return false, "", err
	}

	prompt := buildValidationPrompt(description)

	raw, err := c.callWithRetry(ctx, prompt, encoded)
	if err != nil {
		return false, "", err
	}

	accepted := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), "ACCEPTED")
	return accepted, raw, nil
}

func buildValidationPrompt(description string) string {
	return fmt.Sprintf(
		"You are an image validation assistant. Please analyze this image and determine if it matches the following description: %q\n\n"+
			"Respond with either:\n"+
			"- \"ACCEPTED\" if the image clearly matches the description\n"+
			"- \"REJECTED: [reason]\" if the image does not match, followed by a brief explanation\n\n"+
			"Be precise and focus on the key elements mentioned in the description. If the description mentions "+
			"specific objects, locations, or characteristics, verify their presence in the image.",
		description,
	)
}

func readAndEncodeImage(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", &ErrInvalidImage{Detail: fmt.Sprintf("image file not found: %s", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	if err := validateImageFormat(path, data); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// validateImageFormat rejects unsupported extensions and magic-byte mismatches,
// mirroring validate_image_format in the original Rust client.
func validateImageFormat(path string, data []byte) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	switch ext {
	case "jpg", "jpeg", "png", "gif", "bmp", "webp":
	default:
		return &ErrInvalidImage{Detail: fmt.Sprintf("unsupported image extension: %s", ext)}
	}

	if len(data) < 12 {
		return &ErrInvalidImage{Detail: "image file too small"}
	}

	var ok bool
	switch ext {
	case "jpg", "jpeg":
		ok = bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF})
	case "png":
		ok = bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A})
	case "gif":
		ok = bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
	case "bmp":
		ok = bytes.HasPrefix(data, []byte("BM"))
	case "webp":
		ok = bytes.HasPrefix(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
	}

	if !ok {
		return &ErrInvalidImage{Detail: fmt.Sprintf("invalid %s file format", ext)}
	}
	return nil
}

// callWithRetry wraps callOnce in an exponential backoff (1s initial, x2,
// capped at 30s) limited to three total attempts. Malformed-image rejection
// never reaches here since readAndEncodeImage fails before any HTTP call.
func (c *HTTPClient) callWithRetry(ctx context.Context, prompt, imageB64 string) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries-1), ctx)

	var result string
	attempt := 0
	err := backoff.RetryNotify(
		func() error {
			attempt++
			resp, err := c.callOnce(ctx, prompt, imageB64)
			if err != nil {
				return err
			}
			result = resp
			return nil
		},
		policy,
		func(err error, wait time.Duration) {
			if c.log != nil {
				c.log.Warnw("llm call failed, retrying", "attempt", attempt, "wait", wait, "error", err)
			}
		},
	)
	if err != nil {
		return "", fmt.Errorf("llm call failed after %d attempts: %w", attempt, err)
	}
	return result, nil
}

func (c *HTTPClient) callOnce(ctx context.Context, prompt, imageB64 string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt, Images: []string{imageB64}},
		},
		Stream: false,
		Options: chatOptions{
			Temperature: 0.1,
			NumPredict:  500,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api returned %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse llm response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}
