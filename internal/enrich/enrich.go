package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Transcriber turns a voicemail recording into text. Failures degrade to
// an empty transcript; the billing workflow never aborts on enrichment.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) (string, error)
}

// Responder composes the text-back reply. On failure callers fall back to
// a static template.
type Responder interface {
	Compose(ctx context.Context, req ComposeRequest) (string, error)
}

type ComposeRequest struct {
	BusinessName string `json:"business_name"`
	CallerNumber string `json:"caller_number"`
	Transcript   string `json:"transcript,omitempty"`
	TwoWay       bool   `json:"two_way"`
}

var ErrUnavailable = errors.New("enrichment backend unavailable")

type HTTPTranscriber struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

func NewHTTPTranscriber(endpoint string, logger *logrus.Logger) *HTTPTranscriber {
	return &HTTPTranscriber{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audioURL string) (string, error) {
	if t.endpoint == "" {
		return "", ErrUnavailable
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := postJSON(ctx, t.client, t.endpoint, map[string]string{"audio_url": audioURL}, &out); err != nil {
		t.logger.WithError(err).Warn("Transcription failed, continuing without transcript")
		return "", err
	}
	return out.Text, nil
}

type HTTPResponder struct {
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

func NewHTTPResponder(endpoint string, logger *logrus.Logger) *HTTPResponder {
	return &HTTPResponder{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

func (r *HTTPResponder) Compose(ctx context.Context, req ComposeRequest) (string, error) {
	if r.endpoint == "" {
		return "", ErrUnavailable
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := postJSON(ctx, r.client, r.endpoint, req, &out); err != nil {
		r.logger.WithError(err).Warn("Reply composition failed, falling back to template")
		return "", err
	}
	return out.Text, nil
}

// FallbackReply is the static template used when the responder backend is
// down or not configured.
func FallbackReply(businessName string) string {
	if businessName == "" {
		return "Sorry we missed your call! We'll get back to you as soon as possible."
	}
	return fmt.Sprintf("Hi, you reached %s. Sorry we missed your call! We'll get back to you as soon as possible.", businessName)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
