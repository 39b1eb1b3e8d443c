package nlu

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	llmx "github.com/tanpawarit/frontdesk-agent/agent/llm"
	promptx "github.com/tanpawarit/frontdesk-agent/agent/prompt"
)

const (
	ProviderKeyword = "keyword"
	ProviderLLM     = "llm"
)

type registryImpl struct {
	classifier contractx.Classifier
	knowledge  contractx.Knowledge
	text       contractx.TextGenerator
}

func (r *registryImpl) Classifier() contractx.Classifier {
	return r.classifier
}

func (r *registryImpl) Knowledge() contractx.Knowledge {
	return r.knowledge
}

func (r *registryImpl) TextGenerator() contractx.TextGenerator {
	return r.text
}

// NewKeywordRegistry returns the offline capability set.
func NewKeywordRegistry() contractx.Registry {
	return &registryImpl{
		classifier: KeywordClassifier{},
		knowledge:  CannedKnowledge{},
		text:       CannedText{},
	}
}

// NewRegistry selects the capability variant once for the process lifetime.
func NewRegistry(ctx context.Context, provider string, cfg llmx.Config) (contractx.Registry, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderKeyword:
		return NewKeywordRegistry(), nil
	case ProviderLLM:
		return NewLLMRegistry(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown nlu provider %q", contractx.ErrValidation, provider)
	}
}

func NewLLMRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	classifierModel, err := cfg.OpenRouterFor(llmx.CapabilityClassifier).NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}
	knowledgeModel, err := cfg.OpenRouterFor(llmx.CapabilityKnowledge).NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create knowledge model: %v", contractx.ErrModelInvoke, err)
	}
	textModel, err := cfg.OpenRouterFor(llmx.CapabilityText).NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create text model: %v", contractx.ErrModelInvoke, err)
	}

	classifier, err := NewLLMClassifier(ctx, classifierModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}
	knowledge, err := NewLLMResponder(ctx, string(llmx.CapabilityKnowledge), knowledgeModel, prompts.Knowledge)
	if err != nil {
		return nil, err
	}
	text, err := NewLLMResponder(ctx, string(llmx.CapabilityText), textModel, prompts.Fallback)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		classifier: classifier,
		knowledge:  knowledge,
		text:       text,
	}, nil
}
