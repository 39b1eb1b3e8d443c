package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	openrouterx "github.com/tanpawarit/frontdesk-agent/pkg/openrouter"
)

type Capability string

const (
	CapabilityClassifier Capability = "classifier"
	CapabilityKnowledge  Capability = "knowledge"
	CapabilityText       Capability = "text"
)

type Config struct {
	BaseURL  string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey   string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model    string        `envconfig:"MODEL" split_words:"true" required:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL  string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel       string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	KnowledgeModel        string  `envconfig:"KNOWLEDGE_MODEL" split_words:"true"`
	TextModel             string  `envconfig:"TEXT_MODEL" split_words:"true"`
	ClassifierTemperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0.3"`
	KnowledgeTemperature  float32 `envconfig:"KNOWLEDGE_TEMPERATURE" split_words:"true" default:"0.5"`
	TextTemperature       float32 `envconfig:"TEXT_TEMPERATURE" split_words:"true" default:"0.7"`
	ClassifierMaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" split_words:"true" default:"150"`
	KnowledgeMaxTokens    int     `envconfig:"KNOWLEDGE_MAX_TOKENS" split_words:"true" default:"300"`
	TextMaxTokens         int     `envconfig:"TEXT_MAX_TOKENS" split_words:"true" default:"500"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(capability Capability) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	var (
		override  string
		temp      float32
		maxTokens int
	)

	switch capability {
	case CapabilityClassifier:
		override, temp, maxTokens = c.ClassifierModel, c.ClassifierTemperature, c.ClassifierMaxTokens
	case CapabilityKnowledge:
		override, temp, maxTokens = c.KnowledgeModel, c.KnowledgeTemperature, c.KnowledgeMaxTokens
	default:
		override, temp, maxTokens = c.TextModel, c.TextTemperature, c.TextMaxTokens
	}
	if v := strings.TrimSpace(override); v != "" {
		modelName = v
	}

	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxTokens,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
