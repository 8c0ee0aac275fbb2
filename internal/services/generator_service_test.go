package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/appwright/pageforge/internal/assets"
	"github.com/appwright/pageforge/internal/providers"
)

type fakeResponder struct {
	text  string
	err   error
	calls int
	input string
}

func (f *fakeResponder) Respond(ctx context.Context, input string) (string, error) {
	f.calls++
	f.input = input
	return f.text, f.err
}

func TestGenerateSuccess(t *testing.T) {
	r := &fakeResponder{text: "<html>app</html>"}
	svc := NewGeneratorService(r, slog.Default())

	got := svc.Generate(context.Background(), "todo app")
	if got != "<html>app</html>" {
		t.Errorf("Generate() = %q", got)
	}
	if !strings.Contains(r.input, "todo app") {
		t.Error("brief not included in the model input")
	}
	if !strings.HasSuffix(r.input, "\n\ntodo app") {
		t.Errorf("input should be instruction + blank line + brief, got suffix %q", r.input[len(r.input)-20:])
	}
}

func TestGenerateFallbackOnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"missing credentials", providers.ErrNoCredentials},
		{"upstream failure", errors.New("status=500")},
		{"unparseable body", providers.ErrNoRecognizedShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGeneratorService(&fakeResponder{err: tt.err}, slog.Default())
			got := svc.Generate(context.Background(), "anything")
			if got != assets.FallbackCalculator {
				t.Error("Generate() on failure should return the fallback artifact verbatim")
			}
		})
	}
}

func TestGenerateFallbackIsDeterministic(t *testing.T) {
	svc := NewGeneratorService(&fakeResponder{err: errors.New("boom")}, slog.Default())
	first := svc.Generate(context.Background(), "x")
	second := svc.Generate(context.Background(), "x")
	if first != second || first != assets.FallbackCalculator {
		t.Error("fallback must be identical on every failure")
	}
}

func TestGenerateFallbackOnEmptyText(t *testing.T) {
	svc := NewGeneratorService(&fakeResponder{text: "   \n"}, slog.Default())
	if got := svc.Generate(context.Background(), "x"); got != assets.FallbackCalculator {
		t.Error("empty extracted text should fall back")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", "<html></html>", "<html></html>"},
		{"plain fences", "```\n<html></html>\n```", "<html></html>"},
		{"language fences", "```html\n<html></html>\n```", "<html></html>"},
		{"missing closing fence", "```html\n<html></html>", "<html></html>"},
		{"leading whitespace", "  ```\n<p>x</p>\n```  ", "<p>x</p>"},
		{"fence-like content inline", "text with ``` inside", "text with ``` inside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.in); got != tt.want {
				t.Errorf("StripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
