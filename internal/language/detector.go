package language

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/irislabs/iris/internal/models"
)

// ErrUndetected is returned when the detection service gives no confident
// answer for the text.
var ErrUndetected = errors.New("language not detected")

const defaultDetectEndpoint = "https://ws.detectlanguage.com/0.2/detect"

// Opts holds the detector's configurable fields.
type Opts struct {
	APIKey   string
	Endpoint string
	Client   *http.Client
}

// Option configures the HTTP detector.
type Option func(*Opts)

// WithAPIKey sets the detection service API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithEndpoint overrides the detection service URL.
func WithEndpoint(endpoint string) Option {
	return func(o *Opts) { o.Endpoint = endpoint }
}

// WithHTTPClient sets the HTTP client used for detection calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// HTTPDetector calls an external language identification service.
type HTTPDetector struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewHTTPDetector creates a detector for the remote identification service.
func NewHTTPDetector(opts ...Option) (*HTTPDetector, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("language detection API key not set")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultDetectEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPDetector{apiKey: cfg.APIKey, endpoint: cfg.Endpoint, client: cfg.Client}, nil
}

type detectResponse struct {
	Data struct {
		Detections []struct {
			Language   string  `json:"language"`
			IsReliable bool    `json:"isReliable"`
			Confidence float64 `json:"confidence"`
		} `json:"detections"`
	} `json:"data"`
}

// Detect identifies the language of text. Languages other than English and
// Spanish resolve to ErrUndetected so the caller falls back.
func (d *HTTPDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	form := url.Values{"q": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return models.LangUnknown, fmt.Errorf("build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return models.LangUnknown, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Debug("Detection service returned non-OK status", "status", resp.StatusCode)
		return models.LangUnknown, fmt.Errorf("detection service returned status %d", resp.StatusCode)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.LangUnknown, fmt.Errorf("decode detection response: %w", err)
	}
	if len(parsed.Data.Detections) == 0 {
		return models.LangUnknown, ErrUndetected
	}

	switch parsed.Data.Detections[0].Language {
	case "en":
		return models.LangEnglish, nil
	case "es":
		return models.LangSpanish, nil
	default:
		return models.LangUnknown, ErrUndetected
	}
}
