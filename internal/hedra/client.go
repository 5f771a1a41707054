// Package hedra provides a client for the Hedra Character 3 API.
//
// The client covers the four remote operations the batch workflow needs —
// uploading assets, creating videos, checking generation status, and
// downloading finished videos — plus WaitForVideo, which blocks until a job
// reaches a terminal status.
//
// Video generation is a multi-step process:
//  1. Upload the character image and the audio clip as assets
//  2. Create a video job referencing both asset IDs and a prompt
//  3. Poll job status until "completed" or "failed"
//  4. Download the finished video
package hedra

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
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fpang/hedra-batch/internal/config"
)

const (
	// requestTimeout bounds the JSON calls (create, status). Uploads and
	// downloads stream arbitrarily large bodies and are bounded only by the
	// caller's context.
	requestTimeout = 30 * time.Second

	// downloadChunkSize is the buffer size used when streaming a finished
	// video to disk.
	downloadChunkSize = 8 * 1024
)

// Video job statuses with defined meaning. The service may report other
// intermediate values (queued, processing, ...); anything that is not one of
// these two is treated as still pending.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Client provides methods for driving video generation via the Hedra API.
// All operations authenticate with a bearer token and return *Error on
// failure. The client never retries.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	waitTimeout  time.Duration
	log          zerolog.Logger
}

// NewClient creates a Hedra API client. An empty API key is rejected here,
// before any network call is attempted.
func NewClient(apiKey string, cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &Error{
			Op:  "new client",
			Msg: fmt.Sprintf("API key not provided. Set %s or pass --api-key", config.EnvAPIKey),
		}
	}

	return &Client{
		httpClient:   &http.Client{},
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(cfg.API.BaseURL, "/"),
		pollInterval: cfg.PollIntervalDuration(),
		waitTimeout:  cfg.WaitTimeoutDuration(),
		log:          logger,
	}, nil
}

// --- API response types ---

type assetResponse struct {
	AssetID string `json:"asset_id"`
}

type videoResponse struct {
	VideoID string `json:"video_id"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// --- Operations ---

// UploadAsset uploads an image or audio file and returns the asset ID the
// service assigned to it. The file is streamed as a multipart form upload.
func (c *Client) UploadAsset(ctx context.Context, filePath string) (string, error) {
	const op = "upload asset"

	file, err := os.Open(filePath)
	if err != nil {
		return "", &Error{Op: op, Target: filePath, Err: err}
	}
	defer file.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assets", pr)
	if err != nil {
		return "", &Error{Op: op, Target: filePath, Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp assetResponse
	if err := c.doJSON(req, op, filePath, &resp); err != nil {
		return "", err
	}
	if resp.AssetID == "" {
		return "", &Error{Op: op, Target: filePath, Msg: "unexpected response: no asset_id returned"}
	}

	c.log.Debug().Str("file", filepath.Base(filePath)).Str("asset_id", resp.AssetID).Msg("Asset uploaded")
	return resp.AssetID, nil
}

// CreateVideo requests a new video generated from an uploaded image, an
// uploaded audio clip, and a text prompt. Returns the job's video ID.
func (c *Client) CreateVideo(ctx context.Context, imageID, audioID, prompt string) (string, error) {
	const op = "create video"

	body, err := json.Marshal(map[string]string{
		"image_id": imageID,
		"audio_id": audioID,
		"prompt":   prompt,
	})
	if err != nil {
		return "", &Error{Op: op, Msg: "encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: op, Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var resp videoResponse
	if err := c.doJSON(req, op, "", &resp); err != nil {
		return "", err
	}
	if resp.VideoID == "" {
		return "", &Error{Op: op, Msg: "unexpected response: no video_id returned"}
	}

	return resp.VideoID, nil
}

// GetVideoStatus returns the current status string for a video job.
func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (string, error) {
	const op = "get video status"

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+videoID, nil)
	if err != nil {
		return "", &Error{Op: op, Target: videoID, Msg: "build request", Err: err}
	}

	var resp statusResponse
	if err := c.doJSON(req, op, videoID, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// DownloadVideo streams a finished video to outputPath, overwriting any
// existing file there. The body is written in fixed-size chunks so large
// videos never sit in memory whole.
func (c *Client) DownloadVideo(ctx context.Context, videoID, outputPath string) error {
	const op = "download video"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/videos/"+videoID+"/download", nil)
	if err != nil {
		return &Error{Op: op, Target: videoID, Msg: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Target: videoID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{
			Op:     op,
			Target: videoID,
			Msg:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return &Error{Op: op, Target: videoID, Msg: "create " + outputPath, Err: err}
	}

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(out, resp.Body, buf); err != nil {
		out.Close()
		return &Error{Op: op, Target: videoID, Msg: "write " + outputPath, Err: err}
	}
	if err := out.Close(); err != nil {
		return &Error{Op: op, Target: videoID, Msg: "close " + outputPath, Err: err}
	}

	return nil
}

// WaitForVideo polls job status at the configured interval until the job
// completes, fails, or the overall timeout elapses. The elapsed-time check
// runs once per iteration before the status fetch, so the actual overrun can
// exceed the timeout by up to one interval plus one request. Exactly one
// status request is in flight at any moment.
func (c *Client) WaitForVideo(ctx context.Context, videoID string) error {
	const op = "wait for video"

	start := time.Now()
	for {
		if time.Since(start) > c.waitTimeout {
			return &Error{Op: op, Target: videoID, Err: ErrGenerationTimeout}
		}

		status, err := c.GetVideoStatus(ctx, videoID)
		if err != nil {
			return err
		}

		switch status {
		case StatusCompleted:
			return nil
		case StatusFailed:
			return &Error{Op: op, Target: videoID, Err: ErrGenerationFailed}
		}

		c.log.Debug().
			Str("video_id", videoID).
			Str("status", status).
			Dur("next_poll", c.pollInterval).
			Msg("Video still generating")

		select {
		case <-ctx.Done():
			return &Error{Op: op, Target: videoID, Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}
	}
}

// --- Internal helpers ---

// doJSON sends req with auth headers attached, enforces a 2xx status, and
// decodes the JSON response body into out.
func (c *Client) doJSON(req *http.Request, op, target string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.log.Debug().Int("status_code", 0).Dur("duration", duration).Err(err).Msg("Hedra API response")
		return &Error{Op: op, Target: target, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status_code", resp.StatusCode).
		Dur("duration", duration).
		Msg("Hedra API response")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Target: target, Msg: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Op:     op,
			Target: target,
			Msg:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Op:     op,
			Target: target,
			Msg:    fmt.Sprintf("parse response (body: %s)", truncate(string(body), 200)),
			Err:    err,
		}
	}

	return nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
