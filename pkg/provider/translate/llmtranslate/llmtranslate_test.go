package llmtranslate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
	llmmock "github.com/MrWong99/interviewpilot/pkg/provider/llm/mock"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
)

func TestTranslate(t *testing.T) {
	m := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "  Merhaba  \n"},
		ModelCapabilities: llm.ModelCapabilities{MaxOutputTokens: 512},
	}
	p, err := New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Translate(context.Background(), translate.Request{Text: "Hello", TargetLang: "tr"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if res.Text != "Merhaba" {
		t.Errorf("Text = %q, want %q", res.Text, "Merhaba")
	}

	calls := m.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	req := calls[0].Req
	if !strings.Contains(req.SystemPrompt, "TR") {
		t.Errorf("system prompt does not name target language: %q", req.SystemPrompt)
	}
	if req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want clamped 512", req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "Hello" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestTranslate_Error(t *testing.T) {
	boom := errors.New("boom")
	p, _ := New(&llmmock.Provider{CompleteErr: boom})
	_, err := p.Translate(context.Background(), translate.Request{Text: "x", TargetLang: "DE"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestNew_Nil(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
