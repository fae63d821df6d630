package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/pkg/provider/llm"
	llmmock "github.com/MrWong99/interviewpilot/pkg/provider/llm/mock"
	"github.com/MrWong99/interviewpilot/pkg/provider/translate"
	translatemock "github.com/MrWong99/interviewpilot/pkg/provider/translate/mock"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestAnswerer_BuildsPrompt(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "  Actually, I use Go daily.\n"},
		ModelCapabilities: llm.ModelCapabilities{MaxOutputTokens: 512},
	}
	a, err := NewAnswerer(p,
		WithAnswererMetrics(testMetrics(t)),
		WithMaxTokens(4096),
		WithTemperature(0.4),
	)
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}

	got, err := a.Answer(context.Background(), "Which language do you use?",
		"Interviewer: Hello\nInterviewer: Which language do you use?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "Actually, I use Go daily." {
		t.Errorf("answer = %q, want trimmed content", got)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if req.SystemPrompt != DefaultSystemPrompt {
		t.Error("system prompt is not the default persona")
	}
	if req.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want clamped 512", req.MaxTokens)
	}
	if req.Temperature != 0.4 {
		t.Errorf("Temperature = %v, want 0.4", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Fatalf("messages = %+v, want one user message", req.Messages)
	}
	want := "--- CONVERSATION HISTORY (Last 5 turns) ---\n" +
		"Interviewer: Hello\nInterviewer: Which language do you use?\n" +
		"--- INPUT ---\n" +
		`"Which language do you use?"`
	if req.Messages[0].Content != want {
		t.Errorf("prompt =\n%s\nwant\n%s", req.Messages[0].Content, want)
	}
}

func TestAnswerer_SetSystemPrompt(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	a, err := NewAnswerer(p, WithSystemPrompt("be brief"), WithAnswererMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("NewAnswerer: %v", err)
	}
	if a.SystemPrompt() != "be brief" {
		t.Fatalf("SystemPrompt = %q", a.SystemPrompt())
	}

	a.SetSystemPrompt("be thorough")
	if _, err := a.Answer(context.Background(), "q", "Interviewer: q"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := p.Calls()[0].Req.SystemPrompt; got != "be thorough" {
		t.Errorf("request system prompt = %q", got)
	}

	a.SetSystemPrompt("")
	if a.SystemPrompt() != DefaultSystemPrompt {
		t.Error("empty prompt did not restore the default")
	}
}

func TestAnswerer_ProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("quota")
	p := &llmmock.Provider{CompleteErr: boom}
	a, _ := NewAnswerer(p, WithAnswererMetrics(testMetrics(t)))

	_, err := a.Answer(context.Background(), "q", "")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped quota error", err)
	}
}

func TestAnswerer_NilResponse(t *testing.T) {
	t.Parallel()
	a, _ := NewAnswerer(&llmmock.Provider{}, WithAnswererMetrics(testMetrics(t)))
	if _, err := a.Answer(context.Background(), "q", ""); err == nil {
		t.Error("expected error for nil response")
	}
}

func TestAnswerer_HistoryTurns(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	a, _ := NewAnswerer(p, WithHistoryTurns(3), WithAnswererMetrics(testMetrics(t)))
	_, _ = a.Answer(context.Background(), "q", "h")
	if got := p.Calls()[0].Req.Messages[0].Content; !strings.HasPrefix(got, "--- CONVERSATION HISTORY (Last 3 turns) ---") {
		t.Errorf("prompt header = %q", got)
	}
}

func TestNewAnswerer_NilProvider(t *testing.T) {
	if _, err := NewAnswerer(nil); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestTranslator_Translate(t *testing.T) {
	t.Parallel()
	p := &translatemock.Provider{Result: translate.Result{Text: "Merhaba"}}
	tr, err := NewTranslator(p, WithTargetLanguage("tr"), WithTranslatorMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	got, err := tr.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Merhaba" {
		t.Errorf("Translate = %q, want Merhaba", got)
	}
	if p.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", p.CallCount())
	}
	if req := p.Calls[0]; req.TargetLang != "TR" || req.Text != "Hello" || req.SourceLang != "" {
		t.Errorf("request = %+v", req)
	}
}

func TestTranslator_Defaults(t *testing.T) {
	t.Parallel()
	tr, _ := NewTranslator(&translatemock.Provider{}, WithSourceLanguage("en"), WithTranslatorMetrics(testMetrics(t)))
	if tr.TargetLanguage() != DefaultTargetLanguage {
		t.Errorf("target = %q, want %q", tr.TargetLanguage(), DefaultTargetLanguage)
	}
	if tr.source != "EN" {
		t.Errorf("source = %q, want EN", tr.source)
	}
}

func TestTranslator_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("rate limited")
	tr, _ := NewTranslator(&translatemock.Provider{Err: boom}, WithTranslatorMetrics(testMetrics(t)))
	if _, err := tr.Translate(context.Background(), "Hello"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped rate limited", err)
	}
}

func TestNewTranslator_NilProvider(t *testing.T) {
	if _, err := NewTranslator(nil); err == nil {
		t.Error("expected error for nil provider")
	}
}
