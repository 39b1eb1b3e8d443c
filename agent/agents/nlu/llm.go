package nlu

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
)

const degradedText = "I apologize, but I'm having trouble generating a response right now."

type classifierLLMOutput struct {
	Intent   string            `json:"intent"`
	Entities map[string]string `json:"entities,omitempty"`
}

// LLMClassifier classifies through a structured-output model graph. Any model
// or schema failure degrades to the unknown intent.
type LLMClassifier struct {
	runner compose.Runnable[map[string]any, classifierLLMOutput]
}

func NewLLMClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMClassifier, error) {
	runner, err := compileStructuredLLMGraph[classifierLLMOutput](ctx, chatModel, systemPrompt, "nlu.classifier_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMClassifier{runner: runner}, nil
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) contractx.Classification {
	out, err := c.classify(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("classifier degraded")
		return contractx.UnknownClassification(true)
	}
	return out
}

func (c *LLMClassifier) classify(ctx context.Context, text string) (contractx.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return contractx.Classification{}, fmt.Errorf("%w: text is empty", contractx.ErrValidation)
	}
	out, err := c.runner.Invoke(ctx, map[string]any{"input": text})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	raw := strings.TrimSpace(out.Intent)
	intent := contractx.ParseIntent(raw)
	if intent == contractx.IntentUnknown && !strings.EqualFold(raw, string(contractx.IntentUnknown)) {
		return contractx.Classification{}, fmt.Errorf("%w: unsupported intent=%q", contractx.ErrSchemaViolation, raw)
	}

	entities := make(map[string]string, len(out.Entities))
	for k, v := range out.Entities {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		entities[k] = v
	}
	return contractx.Classification{Intent: intent, Entities: entities}, nil
}

// LLMResponder backs both the knowledge and the generic text capability.
// Failures degrade to a fixed apology.
type LLMResponder struct {
	name   string
	runner compose.Runnable[map[string]any, *schema.Message]
}

func NewLLMResponder(ctx context.Context, name string, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMResponder, error) {
	runner, err := compileTextLLMGraph(ctx, chatModel, systemPrompt, "nlu."+name+"_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s graph: %v", contractx.ErrModelInvoke, name, err)
	}
	return &LLMResponder{name: name, runner: runner}, nil
}

func (r *LLMResponder) Answer(ctx context.Context, question string) contractx.Completion {
	return r.respond(ctx, question)
}

func (r *LLMResponder) Complete(ctx context.Context, prompt string) contractx.Completion {
	return r.respond(ctx, prompt)
}

func (r *LLMResponder) respond(ctx context.Context, input string) contractx.Completion {
	text, err := r.generate(ctx, input)
	if err != nil {
		log.Warn().Err(err).Str("capability", r.name).Msg("responder degraded")
		return contractx.Completion{Text: degradedText, Degraded: true}
	}
	return contractx.Completion{Text: text}
}

func (r *LLMResponder) generate(ctx context.Context, input string) (string, error) {
	msg, err := r.runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("%w: %s invoke: %v", contractx.ErrModelInvoke, r.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: empty %s response", contractx.ErrSchemaViolation, r.name)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %s message is empty", contractx.ErrSchemaViolation, r.name)
	}
	return text, nil
}
