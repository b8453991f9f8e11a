// Package remote implements C3: a remote embeddings HTTP client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/RealBSMC/KaoYanAssistant/embedding"
)

const (
	connectTimeout = 30 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 30 * time.Second
)

// Client POSTs {model, input} to a remote embeddings endpoint and parses
// {data:[{embedding:[...]}]}. It never retries, per spec §4.3.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: readTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

var _ interface {
	Embed(ctx context.Context, text string, config embedding.Config) ([]float64, bool)
} = (*Client)(nil)

type requestBody struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingEntry struct {
	Embedding []float64 `json:"embedding"`
}

type responseBody struct {
	Data []embeddingEntry `json:"data"`
}

// Embed returns (vector, true) on success, (nil, false) on any of the
// §4.3 failure modes — never an error, since the only caller action on
// failure is to fall back to another backend or fail the call.
func (c *Client) Embed(ctx context.Context, text string, config embedding.Config) ([]float64, bool) {
	if !config.Valid() {
		slog.Warn("remote embedding: config incomplete")
		return nil, false
	}

	payload, err := json.Marshal(requestBody{Model: config.Model, Input: text})
	if err != nil {
		slog.Warn("remote embedding: marshal request failed", "error", err)
		return nil, false
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout+readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(writeCtx, http.MethodPost, config.APIURL, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("remote embedding: build request failed", "error", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("remote embedding: request failed", "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("remote embedding: read response failed", "error", err)
		return nil, false
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("remote embedding: non-2xx response", "status", resp.StatusCode)
		return nil, false
	}
	if len(body) == 0 {
		slog.Warn("remote embedding: empty body")
		return nil, false
	}

	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		slog.Warn("remote embedding: malformed json", "error", err)
		return nil, false
	}
	if len(parsed.Data) == 0 {
		slog.Warn("remote embedding: empty data array")
		return nil, false
	}

	return parsed.Data[0].Embedding, true
}
