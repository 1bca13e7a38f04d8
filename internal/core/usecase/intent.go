package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/core/ports"
)

const intentSystemPrompt = `You are a query classifier. Analyze the user's query and determine the best way to answer it.

Respond with ONLY ONE of these exact words:
- "documents" - if the query is about personal information, resumes, uploaded documents, or specific people's details
- "web_search" - if the query needs current information, news, facts not in personal documents, or real-time data
- "calculator" - if the query involves mathematical calculations
- "general" - if it's a general knowledge question that doesn't need tools

Consider:
- Questions about people or content from uploaded files = documents
- Questions about current events, news, prices, weather = web_search
- Questions with math expressions or "calculate" = calculator
- Philosophical questions, opinions, general knowledge = general`

// IntentRouter classifies a query into one of the four tool categories via a
// single temperature-zero completion. It never fails the turn on an
// unrecognized label: the deterministic fallback always yields a valid tool.
type IntentRouter struct {
	provider ports.CompletionProvider
}

func NewIntentRouter(provider ports.CompletionProvider) *IntentRouter {
	return &IntentRouter{provider: provider}
}

// Classify returns the routing category for the query. Provider errors
// propagate; label ambiguity does not.
func (r *IntentRouter) Classify(ctx context.Context, query string, hasRelevantDocuments bool) (domain.Tool, error) {
	userMessage := fmt.Sprintf("Query: %s\nHas relevant documents: %t\n\nClassification:", query, hasRelevantDocuments)

	raw, err := r.provider.Classify(ctx, intentSystemPrompt, userMessage)
	if err != nil {
		return "", fmt.Errorf("classify intent: %w", err)
	}

	label := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `"'.`))
	if domain.ValidTool(label) {
		return domain.Tool(label), nil
	}
	return fallbackTool(hasRelevantDocuments), nil
}

func fallbackTool(hasRelevantDocuments bool) domain.Tool {
	if hasRelevantDocuments {
		return domain.ToolDocuments
	}
	return domain.ToolGeneral
}
