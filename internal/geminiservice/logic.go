package geminiservice

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"nutribot/internal/grounding"
	"nutribot/internal/knowledge"
)

// unidentifiedImageReply is the fixed degraded reply when the labeler cannot
// name the food. The pipeline must not reach the generation step in that case.
const unidentifiedImageReply = "Sorry, I couldn't identify the food in the image. Please try again with a clearer picture."

// TextQuery is a text-mode request. Profile and ReportText are optional.
type TextQuery struct {
	Message    string
	Profile    *Profile
	ReportText string
}

// ImageQuery is an image-mode request. Image is a base64 data URL.
type ImageQuery struct {
	Message    string
	Profile    *Profile
	ReportText string
	Image      string
}

// Service is the grounded recommendation pipeline: deterministic grounding,
// prompt composition, one generation call, and structured interpretation.
// It holds no per-request state; the knowledge base is read-only, so a
// single Service serves any number of concurrent requests.
type Service struct {
	kb        *knowledge.Base
	generator Generator
	labeler   ImageLabeler
}

// New wires the pipeline. The knowledge base is passed in explicitly;
// nothing here reads ambient globals.
func New(kb *knowledge.Base, generator Generator, labeler ImageLabeler) *Service {
	return &Service{kb: kb, generator: generator, labeler: labeler}
}

// HandleTextQuery runs the full text pipeline. The only error it returns is
// a *GenerationError from the remote call; malformed model output degrades
// into a well-formed envelope instead of failing.
func (s *Service) HandleTextQuery(ctx context.Context, q TextQuery) (Envelope, error) {
	g := grounding.Match(q.Message, s.kb)
	log.Info().
		Str("condition", g.ConditionKey).
		Int("matched_foods", len(g.MatchedFoods)).
		Bool("kb_loaded", s.kb.Loaded()).
		Msg("Grounded text query")

	prompt := ComposeTextPrompt(q.Message, q.Profile, q.ReportText, g)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Envelope{}, err
	}

	return Interpret(raw, g.Grounded()), nil
}

// HandleImageQuery identifies the photographed food first and short-circuits
// with the fixed apology envelope when identification fails; the generator
// is never invoked in that case.
func (s *Service) HandleImageQuery(ctx context.Context, q ImageQuery) (Envelope, error) {
	label := s.labeler.Identify(ctx, q.Image)
	if strings.Contains(strings.ToLower(label), UnknownFoodSentinel) {
		log.Info().Msg("Food identification returned the unknown sentinel, short-circuiting")
		return Envelope{Reply: unidentifiedImageReply, Structured: nil}, nil
	}

	g := grounding.Match(q.Message, s.kb)
	log.Info().
		Str("identified_food", label).
		Str("condition", g.ConditionKey).
		Msg("Grounded image query")

	prompt := ComposeImagePrompt(q.Message, q.Profile, q.ReportText, g, label)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Envelope{}, err
	}

	return Interpret(raw, g.Grounded()), nil
}

// LocalSuggestion is the rules-only fallback: deterministic guidance straight
// from the knowledge base with no generative call. It is total and cheap, so
// it stays available when the generation backend is down.
func (s *Service) LocalSuggestion(message string) (grounding.Result, bool) {
	g := grounding.Match(message, s.kb)
	return g, g.Grounded()
}
