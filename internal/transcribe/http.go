package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPTranscriber posts audio to an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
type HTTPTranscriber struct {
	endpoint string
	apiKey   string
	model    string
	language string
	client   *http.Client
}

func NewHTTPTranscriber(endpoint, apiKey, model, language string) *HTTPTranscriber {
	if model == "" {
		model = "whisper-1"
	}
	return &HTTPTranscriber{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		language: language,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", err
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription endpoint returned %d: %s", resp.StatusCode, msg)
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return out.Text, nil
}
