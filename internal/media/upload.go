package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"whispr/internal/observability"
)

const uploadOperation = "cdn_upload"

// ErrUploadFailed is returned when the CDN accepted the request but did not
// hand back a URL.
var ErrUploadFailed = errors.New("media: upload returned no url")

// UploadError is a non-2xx answer from the CDN.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("media: upload rejected with status %d", e.Status)
}

// Uploader posts images to an unsigned-preset upload endpoint.
type Uploader struct {
	endpoint string
	preset   string
	http     *http.Client
	logger   *observability.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithUploadHTTPClient replaces the http.Client used for uploads.
func WithUploadHTTPClient(hc *http.Client) UploaderOption {
	return func(u *Uploader) { u.http = hc }
}

// WithUploadLogger sets the logger.
func WithUploadLogger(l *observability.Logger) UploaderOption {
	return func(u *Uploader) { u.logger = l }
}

// NewUploader returns an uploader for endpoint using preset.
func NewUploader(endpoint, preset string, opts ...UploaderOption) *Uploader {
	u := &Uploader{endpoint: endpoint, preset: preset}
	for _, opt := range opts {
		opt(u)
	}
	if u.http == nil {
		u.http = http.DefaultClient
	}
	u.logger = observability.OrGlobal(u.logger)
	return u
}

// Upload sends sel and returns its secure URL. folder may be empty.
func (u *Uploader) Upload(ctx context.Context, sel *Selection, folder string) (string, error) {
	if sel == nil {
		return "", errors.New("upload: no image selected")
	}

	span, ctx := observability.NewSpan(ctx, "media.upload", observability.WithSpanKind(observability.SpanKindClient))
	defer span.End()
	span.AddAttributes(
		attribute.String("media.name", sel.Name),
		attribute.Int64("media.size", sel.Size()),
		attribute.String("media.folder", folder),
	)

	body, contentType, err := u.form(sel, folder)
	if err != nil {
		span.SetError(err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	done := observability.TrackRequest(uploadOperation)
	resp, err := u.http.Do(req)
	if err != nil {
		done(0)
		observability.RecordAPIError(uploadOperation, observability.KindTransport)
		span.SetError(err)
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	done(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.SetError(err)
		return "", fmt.Errorf("upload: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		upErr := &UploadError{Status: resp.StatusCode, Body: string(raw)}
		observability.RecordAPIError(uploadOperation, observability.KindStatus)
		span.SetError(upErr)
		u.logger.WarnContext(ctx, "image upload rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("name", sel.Name),
		)
		return "", upErr
	}

	var out struct {
		SecureURL string `json:"secure_url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || strings.TrimSpace(out.SecureURL) == "" {
		observability.RecordAPIError(uploadOperation, observability.KindDecode)
		span.SetError(ErrUploadFailed)
		return "", ErrUploadFailed
	}
	return out.SecureURL, nil
}

func (u *Uploader) form(sel *Selection, folder string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", sel.Name)
	if err != nil {
		return nil, "", fmt.Errorf("upload: %w", err)
	}
	if _, err := part.Write(sel.Data); err != nil {
		return nil, "", fmt.Errorf("upload: %w", err)
	}
	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return nil, "", fmt.Errorf("upload: %w", err)
	}
	if folder != "" {
		if err := w.WriteField("folder", folder); err != nil {
			return nil, "", fmt.Errorf("upload: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("upload: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
