package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/appwright/pageforge/internal/assets"
	"github.com/appwright/pageforge/internal/metrics"
	"github.com/appwright/pageforge/internal/providers"
)

// instruction is prepended to every brief sent to the generation service.
const instruction = "Create a single self-contained HTML file using Tailwind CSS via CDN. " +
	"The app must be fully functional with no placeholders. " +
	"Return only the HTML, nothing else."

// GeneratorService produces the primary application artifact. It never fails:
// any upstream problem falls back to a working default page so the pipeline
// always has something to publish.
type GeneratorService interface {
	Generate(ctx context.Context, brief string) string
}

type generatorService struct {
	responder providers.Responder
	logger    *slog.Logger
}

func NewGeneratorService(responder providers.Responder, logger *slog.Logger) GeneratorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &generatorService{responder: responder, logger: logger}
}

func (s *generatorService) Generate(ctx context.Context, brief string) string {
	text, err := s.responder.Respond(ctx, instruction+"\n\n"+brief)
	if err != nil {
		cause := "upstream_error"
		if errors.Is(err, providers.ErrNoCredentials) {
			cause = "missing_credentials"
		} else if errors.Is(err, providers.ErrNoRecognizedShape) {
			cause = "unparseable_body"
		}
		s.logger.Warn("generation failed, serving fallback artifact", "cause", cause, "err", err)
		metrics.GenerationFallbackTotal.WithLabelValues(cause).Inc()
		return assets.FallbackCalculator
	}

	text = StripCodeFences(text)
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("generation returned empty text, serving fallback artifact")
		metrics.GenerationFallbackTotal.WithLabelValues("empty_response").Inc()
		return assets.FallbackCalculator
	}
	return text
}

// StripCodeFences removes a surrounding markdown code fence, if any. Models
// often wrap the artifact in ```html ... ``` despite instructions not to.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	// Drop the opening fence line (``` or ```html) and a closing fence if present.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
