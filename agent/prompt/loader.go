package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/knowledge.txt
	knowledgeRaw string

	//go:embed template/fallback.txt
	fallbackRaw string
)

// PromptSet holds the system prompts of the LLM-backed capabilities.
// Prompts are FString templates, so they must not contain literal braces.
type PromptSet struct {
	Classifier string
	Knowledge  string
	Fallback   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier: strings.TrimSpace(classifierRaw),
		Knowledge:  strings.TrimSpace(knowledgeRaw),
		Fallback:   strings.TrimSpace(fallbackRaw),
	}
}
