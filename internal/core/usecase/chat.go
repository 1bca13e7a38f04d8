package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/core/ports"
)

const (
	defaultWebMaxResults  = 3
	webContextSnippetMax  = 300
	webSourceSnippetMax   = 150
	defaultConversationID = "default"
)

// ChatLimits bounds the external calls of a single turn.
type ChatLimits struct {
	RetrievalTopK   int
	WebMaxResults   int
	MemoryPairs     int
	RouteTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

func (l ChatLimits) normalize() ChatLimits {
	out := l
	if out.RetrievalTopK <= 0 {
		out.RetrievalTopK = defaultRetrievalK
	}
	if out.WebMaxResults <= 0 {
		out.WebMaxResults = defaultWebMaxResults
	}
	if out.MemoryPairs <= 0 {
		out.MemoryPairs = defaultMaxMessagePairs
	}
	if out.RouteTimeout <= 0 {
		out.RouteTimeout = 15 * time.Second
	}
	if out.SearchTimeout <= 0 {
		out.SearchTimeout = 20 * time.Second
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = 60 * time.Second
	}
	return out
}

// session holds the per-conversation state. Turns of one conversation are
// serialized on the session mutex; distinct conversations run concurrently.
type session struct {
	mu        sync.Mutex
	memory    *ConversationMemory
	citations *CitationBuilder
}

// ChatUseCase composes retrieval, routing, tool execution, prompt building
// and generation into one request/response cycle per turn.
type ChatUseCase struct {
	retriever *RelevanceRetriever
	router    *IntentRouter
	web       ports.WebSearcher
	calc      ports.Calculator
	generator ports.CompletionProvider
	limits    ChatLimits
	logger    *slog.Logger

	sessionsMu sync.Mutex
	sessions   map[string]*session
}

func NewChatUseCase(
	retriever *RelevanceRetriever,
	router *IntentRouter,
	web ports.WebSearcher,
	calc ports.Calculator,
	generator ports.CompletionProvider,
	limits ChatLimits,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		retriever: retriever,
		router:    router,
		web:       web,
		calc:      calc,
		generator: generator,
		limits:    limits.normalize(),
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// Query runs one turn: retrieve, route, gather context, generate, update
// memory and package the result.
func (uc *ChatUseCase) Query(ctx context.Context, conversationID, message string) (*domain.QueryResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat query", fmt.Errorf("message is required"))
	}

	sess := uc.session(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Previous turn's citations must never leak into this answer.
	sess.citations.Reset()

	retrieved := uc.retriever.Retrieve(ctx, message, uc.limits.RetrievalTopK)
	hasDocs := len(retrieved) > 0

	routeCtx, cancelRoute := context.WithTimeout(ctx, uc.limits.RouteTimeout)
	intent, err := uc.router.Classify(routeCtx, message, hasDocs)
	cancelRoute()
	if err != nil {
		return nil, err
	}

	toolUsed := intent
	var contextText string
	var webSources []domain.WebSource

	switch {
	case intent == domain.ToolDocuments && hasDocs:
		sess.citations.Build(retrieved)
		contextText = sess.citations.Context()
	case intent == domain.ToolWebSearch || intent == domain.ToolDocuments:
		// Documents were routed but nothing relevant exists: silently
		// cascade to web search instead of answering "no documents".
		toolUsed = domain.ToolWebSearch
		searchCtx, cancelSearch := context.WithTimeout(ctx, uc.limits.SearchTimeout)
		outcome := uc.web.Search(searchCtx, message, uc.limits.WebMaxResults)
		cancelSearch()
		contextText = formatWebContext(outcome)
		if outcome.Success {
			webSources = packageWebSources(outcome.Results)
		}
	case intent == domain.ToolCalculator:
		calc := uc.calc.Evaluate(ExtractArithmeticExpression(message))
		if calc.Success {
			contextText = fmt.Sprintf("%s = %s", calc.Expression, calc.Result)
		} else {
			contextText = fmt.Sprintf("Could not calculate: %s", calc.Error)
		}
	default:
		toolUsed = domain.ToolGeneral
	}

	systemPrompt := uc.buildSystemPrompt(toolUsed, contextText, sess)

	genCtx, cancelGen := context.WithTimeout(ctx, uc.limits.GenerateTimeout)
	answer, err := uc.generator.Complete(genCtx, systemPrompt, sess.memory.Turns(), message)
	cancelGen()
	if err != nil {
		// Partial state from this turn is discarded with the error.
		sess.citations.Reset()
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sess.memory.AddUser(message)
	sess.memory.AddAssistant(answer)

	result := &domain.QueryResult{
		Answer:       answer,
		RoutedIntent: intent,
		ToolUsed:     toolUsed,
		WebSources:   webSources,
		UsedRAG:      toolUsed == domain.ToolDocuments,
	}
	if toolUsed == domain.ToolDocuments {
		result.Sources = sess.citations.Citations()
		result.DocumentsSearched = len(result.Sources)
	}

	uc.logger.Info("chat_turn",
		"conversation_id", normalizeConversationID(conversationID),
		"routed_intent", string(intent),
		"tool_used", string(toolUsed),
		"used_rag", result.UsedRAG,
		"documents_searched", result.DocumentsSearched,
	)
	return result, nil
}

// ClearHistory drops the conversation's memory and citations.
func (uc *ChatUseCase) ClearHistory(conversationID string) {
	sess := uc.session(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.memory.Clear()
	sess.citations.Reset()
}

// CitationsSummary reports the citations built for the conversation's most
// recent documents-grounded answer.
func (uc *ChatUseCase) CitationsSummary(conversationID string) domain.CitationSummary {
	sess := uc.session(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.citations.Summary()
}

// MemoryState reports the size and cap of the conversation's turn history.
func (uc *ChatUseCase) MemoryState(conversationID string) (count, capacity int) {
	sess := uc.session(conversationID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.memory.Len(), uc.limits.MemoryPairs * 2
}

func (uc *ChatUseCase) session(conversationID string) *session {
	id := normalizeConversationID(conversationID)

	uc.sessionsMu.Lock()
	defer uc.sessionsMu.Unlock()
	if sess, ok := uc.sessions[id]; ok {
		return sess
	}
	sess := &session{
		memory:    NewConversationMemory(uc.limits.MemoryPairs),
		citations: NewCitationBuilder(),
	}
	uc.sessions[id] = sess
	return sess
}

func normalizeConversationID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return defaultConversationID
	}
	return id
}

func (uc *ChatUseCase) buildSystemPrompt(tool domain.Tool, contextText string, sess *session) string {
	conversation := sess.memory.RenderRecent(recentRenderEntries)

	switch tool {
	case domain.ToolDocuments:
		return fmt.Sprintf(`You are a helpful AI assistant with access to the user's documents.

Use the document context below to answer the question. Cite sources using [Source X] format.

DOCUMENT CONTEXT:
%s

%s

CONVERSATION HISTORY:
%s`, contextText, sess.citations.Instruction(), conversation)
	case domain.ToolWebSearch:
		return fmt.Sprintf(`You are a helpful AI assistant with web search capabilities.

Use the web search results below to answer the question. Cite sources using [Web Source X] format.
Include relevant URLs when helpful.

WEB SEARCH RESULTS:
%s

CONVERSATION HISTORY:
%s`, contextText, conversation)
	case domain.ToolCalculator:
		return fmt.Sprintf(`You are a helpful AI assistant with calculator capabilities.

The calculation result is: %s

Explain the result clearly to the user.

CONVERSATION HISTORY:
%s`, contextText, conversation)
	default:
		return fmt.Sprintf(`You are a helpful AI assistant.

Answer the user's question based on your general knowledge.
Be helpful and conversational.

CONVERSATION HISTORY:
%s`, conversation)
	}
}

func formatWebContext(outcome domain.WebSearchOutcome) string {
	if !outcome.Success || len(outcome.Results) == 0 {
		return "No web results found."
	}
	parts := make([]string, 0, len(outcome.Results))
	for i, item := range outcome.Results {
		parts = append(parts, fmt.Sprintf("[Web Source %d]: %s\nURL: %s\nContent: %s",
			i+1, item.Title, item.URL, truncateMessage(item.Content, webContextSnippetMax)))
	}
	return strings.Join(parts, "\n\n")
}

func packageWebSources(results []domain.WebSearchResult) []domain.WebSource {
	sources := make([]domain.WebSource, 0, len(results))
	for i, r := range results {
		sources = append(sources, domain.WebSource{
			ID:      i + 1,
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncateMessage(r.Content, webSourceSnippetMax),
		})
	}
	return sources
}

// ExtractArithmeticExpression pulls the longest arithmetic substring out of a
// natural-language query, so "What is 12 * 7?" evaluates "12 * 7". Returns
// the trimmed query unchanged when no candidate contains a digit.
func ExtractArithmeticExpression(query string) string {
	best := ""
	current := strings.Builder{}
	flush := func() {
		candidate := strings.TrimSpace(current.String())
		if strings.ContainsAny(candidate, "0123456789") && len(candidate) > len(best) {
			best = candidate
		}
		current.Reset()
	}

	for _, r := range query {
		switch {
		case r >= '0' && r <= '9',
			r == '+', r == '-', r == '*', r == '/', r == '.', r == '(', r == ')', r == '%',
			r == ' ', r == '\t':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	if best == "" {
		return strings.TrimSpace(query)
	}
	return best
}
