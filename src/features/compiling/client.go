package compiling

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"texwatch/src/features/config"
	"texwatch/src/features/manifest"
)

// Client ships manifests to the compilation server. One bounded-timeout
// request per attempt, no implicit retries: the next filesystem trigger is
// the retry.
type Client struct {
	endpoint     string
	http         *http.Client
	probeTimeout time.Duration
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint: cfg.Server,
		http: &http.Client{
			Timeout: time.Duration(cfg.UploadTimeoutSeconds) * time.Second,
		},
		probeTimeout: time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
	}
}

type fileEntry struct {
	Data   string `json:"data"`
	Binary bool   `json:"binary"`
}

type compileRequest struct {
	Main  string               `json:"main"`
	Files map[string]fileEntry `json:"files"`
}

type compileResponse struct {
	File string `json:"file"`
	Log  string `json:"log"`
}

// Send transmits a manifest and interprets the response. Text content travels
// as-is, binary content base64-wrapped, so the bundle is lossless either way.
func (c *Client) Send(ctx context.Context, buildID string, m *manifest.Manifest) Outcome {
	req := compileRequest{
		Main:  string(m.Main().Data),
		Files: make(map[string]fileEntry),
	}
	for _, f := range m.Files {
		if f.RelPath == m.MainRel {
			continue
		}
		entry := fileEntry{Binary: f.Binary}
		if f.Binary {
			entry.Data = base64.StdEncoding.EncodeToString(f.Data)
		} else {
			entry.Data = string(f.Data)
		}
		req.Files[f.RelPath] = entry
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Outcome{Kind: TransportFailure, Err: fmt.Errorf("failed to encode manifest: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/compile", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: TransportFailure, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", buildID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Outcome{Kind: TransportFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		slog.Debug("Server returned non-OK status", "status", resp.StatusCode)
		return Outcome{Kind: CompileFailure, Log: string(raw)}
	}

	var result compileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Outcome{Kind: TransportFailure, Err: fmt.Errorf("failed to parse server response: %w", err)}
	}
	if result.File == "" {
		return Outcome{Kind: CompileFailure, Log: result.Log}
	}

	artifact, err := base64.StdEncoding.DecodeString(result.File)
	if err != nil {
		return Outcome{Kind: TransportFailure, Err: fmt.Errorf("failed to decode artifact: %w", err)}
	}
	return Outcome{Kind: Success, Artifact: artifact, Log: result.Log}
}

// Probe checks the liveness endpoint once. Used at startup to fail fast with
// an actionable message; it is not a precondition for later attempts.
func (c *Client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Server probe returned unexpected status", "status", resp.StatusCode)
	}
	return nil
}
