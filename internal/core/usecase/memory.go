package usecase

import (
	"fmt"
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

const (
	defaultMaxMessagePairs = 10
	recentRenderEntries    = 6
	renderMessageMaxChars  = 200

	emptyHistoryPlaceholder = "(no prior conversation)"
)

// ConversationMemory is a bounded, role-tagged turn history. It retains at
// most maxPairs*2 entries, trimming the oldest pair first, and lives exactly
// as long as its conversation session.
type ConversationMemory struct {
	maxPairs int
	turns    []domain.ConversationTurn
}

func NewConversationMemory(maxPairs int) *ConversationMemory {
	if maxPairs <= 0 {
		maxPairs = defaultMaxMessagePairs
	}
	return &ConversationMemory{maxPairs: maxPairs}
}

func (m *ConversationMemory) AddUser(content string) {
	m.append(domain.ConversationTurn{Role: domain.RoleUser, Content: content})
}

func (m *ConversationMemory) AddAssistant(content string) {
	m.append(domain.ConversationTurn{Role: domain.RoleAssistant, Content: content})
}

func (m *ConversationMemory) append(turn domain.ConversationTurn) {
	m.turns = append(m.turns, turn)
	if limit := m.maxPairs * 2; len(m.turns) > limit {
		// Trim whole pairs so the history always starts on a user turn.
		drop := len(m.turns) - limit
		if drop%2 != 0 {
			drop++
		}
		m.turns = append(m.turns[:0], m.turns[drop:]...)
	}
}

// Turns returns the retained history, oldest first.
func (m *ConversationMemory) Turns() []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, len(m.turns))
	copy(out, m.turns)
	return out
}

func (m *ConversationMemory) Len() int {
	return len(m.turns)
}

func (m *ConversationMemory) Clear() {
	m.turns = nil
}

// RenderRecent renders the last limit entries as "Role: content" lines for
// prompt context, truncating long messages. An empty history renders an
// explicit placeholder so prompts stay well-formed.
func (m *ConversationMemory) RenderRecent(limit int) string {
	if limit <= 0 {
		limit = recentRenderEntries
	}
	if len(m.turns) == 0 {
		return emptyHistoryPlaceholder
	}

	start := len(m.turns) - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, limit)
	for _, turn := range m.turns[start:] {
		label := "User"
		if turn.Role == domain.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, truncateMessage(turn.Content, renderMessageMaxChars)))
	}
	return strings.Join(lines, "\n")
}

func truncateMessage(content string, maxChars int) string {
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + "..."
}
