package deepl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

func TestNew(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty key")
	}

	p, err := New("abc:fx")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.baseURL != freeBaseURL {
		t.Errorf("free key baseURL = %q, want %q", p.baseURL, freeBaseURL)
	}

	p, _ = New("abc")
	if p.baseURL != proBaseURL {
		t.Errorf("pro key baseURL = %q, want %q", p.baseURL, proBaseURL)
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()

	var got translateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/translate" {
			http.Error(w, "bad route", http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "DeepL-Auth-Key key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"Kendinizden bahseder misiniz?"}]}`))
	}))
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL), WithFormality("prefer_less"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Translate(context.Background(), translate.Request{Text: "Tell me about yourself", TargetLang: "tr"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Kendinizden bahseder misiniz?" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.DetectedSourceLang != "EN" {
		t.Errorf("DetectedSourceLang = %q, want EN", res.DetectedSourceLang)
	}
	if got.TargetLang != "TR" {
		t.Errorf("target_lang = %q, want TR", got.TargetLang)
	}
	if len(got.Text) != 1 || got.Text[0] != "Tell me about yourself" {
		t.Errorf("text = %v", got.Text)
	}
	if got.Formality != "prefer_less" {
		t.Errorf("formality = %q", got.Formality)
	}
}

func TestTranslate_StatusErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrAuth},
		{456, ErrQuotaExceeded},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		p, _ := New("key", WithBaseURL(srv.URL))
		_, err := p.Translate(context.Background(), translate.Request{Text: "x", TargetLang: "DE"})
		srv.Close()
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestTranslate_EmptyTranslations(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translations":[]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), translate.Request{Text: "x", TargetLang: "DE"}); err == nil {
		t.Fatal("expected error for empty translations")
	}
}

func TestTranslate_MissingTarget(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Translate(context.Background(), translate.Request{Text: "x"}); err == nil {
		t.Fatal("expected error for missing target language")
	}
}
