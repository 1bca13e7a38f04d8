package domain

// Tool identifies the branch that produced an answer.
type Tool string

const (
	ToolDocuments  Tool = "documents"
	ToolWebSearch  Tool = "web_search"
	ToolCalculator Tool = "calculator"
	ToolGeneral    Tool = "general"
)

// ValidTool reports whether s is one of the four routing categories.
func ValidTool(s string) bool {
	switch Tool(s) {
	case ToolDocuments, ToolWebSearch, ToolCalculator, ToolGeneral:
		return true
	default:
		return false
	}
}

// AllTools lists the routing categories in a stable order.
func AllTools() []Tool {
	return []Tool{ToolDocuments, ToolWebSearch, ToolCalculator, ToolGeneral}
}

// WebSearchResult is one normalized hit from the search provider.
type WebSearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// WebSearchOutcome is the uniform result shape of the web search adapter.
// Provider failures are folded into Success=false; they never escape the
// adapter boundary as errors.
type WebSearchOutcome struct {
	Success bool              `json:"success"`
	Query   string            `json:"query"`
	Results []WebSearchResult `json:"results"`
	Answer  string            `json:"answer,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Calculation is the uniform result shape of the calculator adapter.
type Calculation struct {
	Success    bool   `json:"success"`
	Expression string `json:"expression"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// WebSource is a web hit repackaged for the end user, 1-indexed per response.
type WebSource struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// QueryResult is the orchestrator's output for one turn. RoutedIntent is the
// classifier's pick; it differs from ToolUsed when the documents route fell
// back to web search.
type QueryResult struct {
	Answer            string      `json:"answer"`
	RoutedIntent      Tool        `json:"routed_intent"`
	ToolUsed          Tool        `json:"tool_used"`
	Sources           []Citation  `json:"sources,omitempty"`
	WebSources        []WebSource `json:"web_sources,omitempty"`
	UsedRAG           bool        `json:"used_rag"`
	DocumentsSearched int         `json:"documents_searched"`
}
