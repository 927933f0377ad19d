// Package upload talks to the external save collaborator: a REST
// endpoint that accepts the assembled clip plus its metadata, and a
// second call that links a saved clip to a candidate profile. The
// collaborator itself is out of scope; this is only the handoff.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/visiona/studio-capture/internal/types"
)

// SaveRequest is the payload shape of the save handoff.
type SaveRequest struct {
	ClipPath        string
	DurationSeconds int
	FileSizeBytes   int64
	Format          string
	OverallScore    int
	Checks          types.CompositeQualitySnapshot
	Telemetry       []byte // encoded telemetry journal, optional
}

// SaveResponse identifies the saved clip on the collaborator side.
type SaveResponse struct {
	ID string `json:"id"`
}

// Client is the HTTP client for the save collaborator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an upload client. baseURL points at the
// collaborator API root, e.g. "http://localhost:8000/api".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Save uploads the clip and its metadata as one multipart request.
// A failed save returns ErrUploadFailed; the caller keeps the clip
// and session state so the user can retry without re-recording.
func (c *Client) Save(ctx context.Context, req SaveRequest) (*SaveResponse, error) {
	f, err := os.Open(req.ClipPath)
	if err != nil {
		return nil, fmt.Errorf("open clip: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("video_file", filepath.Base(req.ClipPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy clip into form: %w", err)
	}

	checks, err := json.Marshal(req.Checks)
	if err != nil {
		return nil, fmt.Errorf("marshal quality checks: %w", err)
	}

	fields := map[string]string{
		"duration":              strconv.Itoa(req.DurationSeconds),
		"file_size":             strconv.FormatInt(req.FileSizeBytes, 10),
		"format":                req.Format,
		"overall_quality_score": strconv.Itoa(req.OverallScore),
		"quality_checks":        string(checks),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	if len(req.Telemetry) > 0 {
		tpart, err := w.CreateFormFile("telemetry", "telemetry.bin")
		if err != nil {
			return nil, fmt.Errorf("create telemetry part: %w", err)
		}
		if _, err := tpart.Write(req.Telemetry); err != nil {
			return nil, fmt.Errorf("write telemetry part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/", &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: collaborator returned %s", types.ErrUploadFailed, resp.Status)
	}

	var saved SaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrUploadFailed, err)
	}

	slog.Info("clip saved", "clip_id", saved.ID, "size_bytes", req.FileSizeBytes)
	return &saved, nil
}

// LinkToProfile links a previously saved clip to a candidate profile.
func (c *Client) LinkToProfile(ctx context.Context, clipID, candidateID string) error {
	payload, err := json.Marshal(map[string]string{"candidate_id": candidateID})
	if err != nil {
		return fmt.Errorf("marshal link payload: %w", err)
	}

	url := fmt.Sprintf("%s/videos/%s/link_to_profile/", c.baseURL, clipID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build link request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: collaborator returned %s", types.ErrUploadFailed, resp.Status)
	}

	slog.Info("clip linked to profile", "clip_id", clipID, "candidate_id", candidateID)
	return nil
}
