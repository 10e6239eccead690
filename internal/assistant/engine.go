package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Engine classifies messages and extracts calendar event fields by
// delegating to the Mistral API. It holds no per-user state; one instance
// is shared by every handler.
type Engine struct {
	client      *Client
	model       string
	visionModel string
	audioModel  string
	logger      *slog.Logger
}

// NewEngine wires the engine with its models.
func NewEngine(client *Client, model, visionModel, audioModel string, logger *slog.Logger) *Engine {
	return &Engine{
		client:      client,
		model:       model,
		visionModel: visionModel,
		audioModel:  audioModel,
		logger:      logger,
	}
}

// DetectIntent classifies a text message. A response the model garbles
// falls back to IntentOther rather than failing the pipeline.
func (e *Engine) DetectIntent(ctx context.Context, message string) (IntentResult, error) {
	raw, err := e.client.Complete(ctx, e.model, fmt.Sprintf(intentDetectionPrompt, message))
	if err != nil {
		return IntentResult{}, fmt.Errorf("intent detection: %w", err)
	}

	var result IntentResult
	if err := parseJSONBlock(raw, &result); err != nil || result.Intent == "" {
		e.logger.Warn("unparseable intent response, defaulting to other", "error", err)
		return IntentResult{Intent: IntentOther, Explanation: "could not detect intent"}, nil
	}
	return result, nil
}

// ExtractEvent pulls event fields out of a text message. The current time
// is embedded so relative dates ("next Friday") resolve correctly.
func (e *Engine) ExtractEvent(ctx context.Context, message string, now time.Time) (EventDetails, error) {
	prompt := fmt.Sprintf(eventExtractionPrompt, now.Format("2006-01-02 15:04:05"), message)
	raw, err := e.client.Complete(ctx, e.model, prompt)
	if err != nil {
		return EventDetails{}, fmt.Errorf("event extraction: %w", err)
	}

	var details EventDetails
	if err := parseJSONBlock(raw, &details); err != nil {
		return EventDetails{}, fmt.Errorf("event extraction: %w", err)
	}
	return details, nil
}

// ExtractEventFromImage pulls event fields out of a photo, e.g. an event
// poster.
func (e *Engine) ExtractEventFromImage(ctx context.Context, image []byte) (EventDetails, error) {
	raw, err := e.client.CompleteWithImage(ctx, e.visionModel, imageExtractionPrompt, image)
	if err != nil {
		return EventDetails{}, fmt.Errorf("image extraction: %w", err)
	}

	var details EventDetails
	if err := parseJSONBlock(raw, &details); err != nil {
		return EventDetails{}, fmt.Errorf("image extraction: %w", err)
	}
	return details, nil
}

// Transcribe converts a voice note into text.
func (e *Engine) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	text, err := e.client.Transcribe(ctx, e.audioModel, filename, audio)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// parseJSONBlock extracts the first JSON object from a model response that
// may wrap it in markdown code fences or surrounding prose.
func parseJSONBlock(raw string, out interface{}) error {
	candidate := raw
	if idx := strings.Index(candidate, "```json"); idx != -1 {
		candidate = candidate[idx+len("```json"):]
		if end := strings.Index(candidate, "```"); end != -1 {
			candidate = candidate[:end]
		}
	} else if idx := strings.Index(candidate, "```"); idx != -1 {
		candidate = candidate[idx+len("```"):]
		if end := strings.Index(candidate, "```"); end != -1 {
			candidate = candidate[:end]
		}
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object in model response")
	}
	return json.Unmarshal([]byte(candidate[start:end+1]), out)
}
