package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type classifierFake struct {
	label string
	err   error

	gotSystem string
	gotUser   string
}

func (f *classifierFake) Classify(_ context.Context, systemPrompt, userMessage string) (string, error) {
	f.gotSystem = systemPrompt
	f.gotUser = userMessage
	return f.label, f.err
}

func (f *classifierFake) Complete(context.Context, string, []domain.ConversationTurn, string) (string, error) {
	return "", errors.New("not implemented")
}

func TestClassifyNormalizesLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want domain.Tool
	}{
		{"documents", domain.ToolDocuments},
		{" Web_Search \n", domain.ToolWebSearch},
		{`"calculator"`, domain.ToolCalculator},
		{"'general'.", domain.ToolGeneral},
	}
	for _, tc := range cases {
		r := NewIntentRouter(&classifierFake{label: tc.raw})
		got, err := r.Classify(context.Background(), "query", false)
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestClassifyUnknownLabelFallsBack(t *testing.T) {
	r := NewIntentRouter(&classifierFake{label: "search the web please"})

	got, err := r.Classify(context.Background(), "query", true)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got != domain.ToolDocuments {
		t.Fatalf("expected documents fallback with relevant docs, got %s", got)
	}

	got, err = r.Classify(context.Background(), "query", false)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got != domain.ToolGeneral {
		t.Fatalf("expected general fallback without relevant docs, got %s", got)
	}
}

func TestClassifyProviderErrorPropagates(t *testing.T) {
	r := NewIntentRouter(&classifierFake{err: errors.New("llm down")})
	if _, err := r.Classify(context.Background(), "query", false); err == nil {
		t.Fatalf("expected provider error to propagate")
	}
}

func TestClassifyIncludesRetrievalSignal(t *testing.T) {
	fake := &classifierFake{label: "general"}
	r := NewIntentRouter(fake)

	if _, err := r.Classify(context.Background(), "who is on the resume", true); err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if want := "Has relevant documents: true"; !strings.Contains(fake.gotUser, want) {
		t.Fatalf("expected user message to carry %q, got %q", want, fake.gotUser)
	}
	if !strings.Contains(fake.gotSystem, "web_search") {
		t.Fatalf("expected routing categories in system prompt")
	}
}
