// Package translation talks to the language collaborator used for reminder
// messages: translating customer names into the local script, rewriting a
// drafted message from a spoken instruction, and transcribing voice notes.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultLocale is the speech recognition locale for voice instructions.
const DefaultLocale = "ur-PK"

var ErrUnavailable = errors.New("translation service unavailable")

// Translator converts text into the local language.
type Translator interface {
	ToLocalLanguage(ctx context.Context, text string) (string, error)
	Rewrite(ctx context.Context, message string, instruction string) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBase64 string, locale string) (string, error)
}

// Unavailable stands in when no translation service is configured. Every
// call fails with ErrUnavailable so callers take their degraded paths.
type Unavailable struct{}

func (Unavailable) ToLocalLanguage(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Rewrite(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) Transcribe(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL string, apiKey string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("translation base url is empty")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type translateRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type rewriteRequest struct {
	Message     string `json:"message"`
	Instruction string `json:"instruction"`
}

type transcribeRequest struct {
	AudioBase64 string `json:"audio_base64"`
	Locale      string `json:"locale"`
}

type textResponse struct {
	Text string `json:"text"`
}

func (c *Client) ToLocalLanguage(ctx context.Context, text string) (string, error) {
	return c.post(ctx, "/v1/translate", translateRequest{Text: text, Target: "ur"})
}

func (c *Client) Rewrite(ctx context.Context, message string, instruction string) (string, error) {
	return c.post(ctx, "/v1/rewrite", rewriteRequest{Message: message, Instruction: instruction})
}

func (c *Client) Transcribe(ctx context.Context, audioBase64 string, locale string) (string, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	return c.post(ctx, "/v1/transcribe", transcribeRequest{AudioBase64: audioBase64, Locale: locale})
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed textResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response", ErrUnavailable)
	}
	return parsed.Text, nil
}
