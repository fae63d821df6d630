// Package deepl provides a translation provider backed by the DeepL REST API.
//
// Keys ending in ":fx" belong to the free tier and are routed to the free API
// host automatically.
package deepl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

const (
	proBaseURL  = "https://api.deepl.com"
	freeBaseURL = "https://api-free.deepl.com"

	defaultTimeout = 10 * time.Second
)

// Sentinel errors mapped from DeepL status codes.
var (
	ErrAuth          = errors.New("deepl: authorization failed")
	ErrQuotaExceeded = errors.New("deepl: quota exceeded")
	ErrRateLimited   = errors.New("deepl: too many requests")
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithFormality sets the formality preference ("default", "more", "less",
// "prefer_more", "prefer_less").
func WithFormality(f string) Option {
	return func(p *Provider) { p.formality = f }
}

// Provider implements translate.Provider for DeepL.
type Provider struct {
	apiKey    string
	baseURL   string
	formality string
	client    *http.Client
}

var _ translate.Provider = (*Provider)(nil)

// New creates a DeepL provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepl: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		baseURL: proBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	if strings.HasSuffix(apiKey, ":fx") {
		p.baseURL = freeBaseURL
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type translateRequest struct {
	Text       []string `json:"text"`
	TargetLang string   `json:"target_lang"`
	SourceLang string   `json:"source_lang,omitempty"`
	Formality  string   `json:"formality,omitempty"`
}

type translateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if req.TargetLang == "" {
		return translate.Result{}, errors.New("deepl: target language must not be empty")
	}

	body, err := json.Marshal(translateRequest{
		Text:       []string{req.Text},
		TargetLang: strings.ToUpper(req.TargetLang),
		SourceLang: strings.ToUpper(req.SourceLang),
		Formality:  p.formality,
	})
	if err != nil {
		return translate.Result{}, fmt.Errorf("deepl: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/translate", bytes.NewReader(body))
	if err != nil {
		return translate.Result{}, fmt.Errorf("deepl: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return translate.Result{}, fmt.Errorf("deepl: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return translate.Result{}, statusError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return translate.Result{}, fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(out.Translations) == 0 {
		return translate.Result{}, errors.New("deepl: empty translations in response")
	}

	tr := out.Translations[0]
	return translate.Result{Text: tr.Text, DetectedSourceLang: tr.DetectedSourceLanguage}, nil
}

func statusError(code int, body string) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrAuth, code)
	case 456:
		return ErrQuotaExceeded
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("deepl: unexpected status %d: %s", code, body)
	}
}
