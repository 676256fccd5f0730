// Package stt is a narrow HTTP client for the remote speech-to-text
// service (spec §6): multipart POST of a WAV container, JSON response.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the external STT HTTP service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client with connection-pooling tuned for a local
// network hop, the same style the teacher's llm.Client configures its
// http.Client with.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Result is the decoded transcription response.
type Result struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Transcribe POSTs wavBytes (a WAV container, PCM16 mono 16kHz) as form
// field "audio" with an optional lang hint, and returns the decoded result.
// A non-200 response is an ExternalServiceFailure at the dialogue layer.
func (c *Client) Transcribe(ctx context.Context, wavBytes []byte, lang string) (Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", "utterance.wav")
	if err != nil {
		return Result{}, fmt.Errorf("stt: create form file: %w", err)
	}
	if _, err := part.Write(wavBytes); err != nil {
		return Result{}, fmt.Errorf("stt: write audio: %w", err)
	}
	if lang != "" {
		if err := writer.WriteField("lang", lang); err != nil {
			return Result{}, fmt.Errorf("stt: write lang field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("stt: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stt", &body)
	if err != nil {
		return Result{}, fmt.Errorf("stt: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("stt: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("stt: non-200 response: %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("stt: decode response: %w", err)
	}
	return result, nil
}

// HealthCheck hits GET /healthz and expects {"ok": true}.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("stt: build healthz request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stt: healthz request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stt: healthz non-200: %d", resp.StatusCode)
	}
	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("stt: decode healthz response: %w", err)
	}
	if !health.OK {
		return fmt.Errorf("stt: healthz reported not ok")
	}
	return nil
}
