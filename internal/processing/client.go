package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
)

const (
	imageField = "image"
	tagsField  = "tags"
	endpoint   = "/process-image"

	requestIDHeader = "X-Request-ID"

	// maxResponseBytes bounds how much of a backend reply is buffered.
	maxResponseBytes = 64 << 20
)

// Options configures the backend client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client submits images to the remote processing backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Upload is the file sent in the image field.
type Upload struct {
	Filename string
	MIME     string
	Data     []byte
}

type requestIDKey struct{}

// WithRequestID tags ctx so Process forwards id to the backend.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type processResponse struct {
	Status  string                   `json:"status"`
	Message string                   `json:"message"`
	Images  *[]domain.ProcessedImage `json:"images"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("processing: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Process posts the upload and tags to the backend and returns the processed
// images in the order the backend listed them.
func (c *Client) Process(ctx context.Context, upload Upload, tags []domain.Tag) ([]domain.ProcessedImage, error) {
	body, contentType, err := encodeForm(upload, tags)
	if err != nil {
		return nil, fmt.Errorf("processing: encode form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("processing: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if id := requestIDFrom(ctx); id != "" {
		req.Header.Set(requestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", domain.ErrBackend, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", domain.ErrBackend, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackend, failureReason(resp.StatusCode, raw))
	}

	var decoded processResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrMalformedResponse, err)
	}
	if strings.EqualFold(decoded.Status, "fail") {
		msg := strings.TrimSpace(decoded.Message)
		if msg == "" {
			msg = "backend reported failure"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrBackend, msg)
	}
	if decoded.Images == nil {
		return nil, fmt.Errorf("%w: missing images field", domain.ErrMalformedResponse)
	}
	images := *decoded.Images
	c.logger.Debug().
		Str("file", upload.Filename).
		Int("tags", len(tags)).
		Int("images", len(images)).
		Str("request_id", requestIDFrom(ctx)).
		Dur("elapsed", time.Since(start)).
		Msg("processing: backend responded")
	return images, nil
}

func encodeForm(upload Upload, tags []domain.Tag) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	filename := strings.TrimSpace(strings.Map(headerRune, upload.Filename))
	if filename == "" {
		filename = "upload"
	}
	mime := strings.TrimSpace(upload.MIME)
	if mime == "" {
		mime = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, escapeQuotes(filename)))
	header.Set("Content-Type", mime)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	for _, tag := range tags {
		if err := mw.WriteField(tagsField, string(tag)); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// headerRune keeps control characters out of the part header.
func headerRune(r rune) rune {
	if unicode.IsControl(r) {
		return '_'
	}
	return r
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func failureReason(status int, raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if msg := strings.TrimSpace(detail.Message); msg != "" {
			return fmt.Sprintf("status %d: %s", status, msg)
		}
		if msg := strings.TrimSpace(detail.Error); msg != "" {
			return fmt.Sprintf("status %d: %s", status, msg)
		}
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Sprintf("status %d: %s", status, text)
}
