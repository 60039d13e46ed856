package usecases

import (
	"strings"
	"testing"
)

func TestPromptAssembler_WithContext(t *testing.T) {
	p := NewPromptAssembler("Cardiac Surgery in the Adult")
	chunks := ranked("first excerpt", "second excerpt", "third excerpt")

	prompt := p.Assemble("What is a bypass?", chunks)

	for _, c := range chunks {
		if !strings.Contains(prompt, c.Text) {
			t.Errorf("prompt missing chunk text %q", c.Text)
		}
	}
	if !strings.Contains(prompt, "first excerpt\n\nsecond excerpt\n\nthird excerpt") {
		t.Error("chunks should be joined by blank lines in rank order")
	}
	if !strings.Contains(prompt, RefusalSentence) {
		t.Error("prompt should carry the refusal sentence")
	}
	if !strings.Contains(prompt, "limited knowledge") {
		t.Error("prompt should require disclosure of outside knowledge")
	}
	if !strings.Contains(prompt, "What is a bypass?") {
		t.Error("prompt should carry the question")
	}
	if !strings.Contains(prompt, "Cardiac Surgery in the Adult") {
		t.Error("prompt should name the source")
	}
}

func TestPromptAssembler_Fallback(t *testing.T) {
	p := NewPromptAssembler("")
	prompt := p.Assemble("hello?", nil)

	if strings.Contains(prompt, "Context:") {
		t.Error("fallback prompt must not contain a context block")
	}
	if !strings.Contains(prompt, RefusalSentence) {
		t.Error("fallback prompt should carry the refusal sentence")
	}
	if !strings.Contains(prompt, "limited knowledge") {
		t.Error("fallback prompt should require disclosure")
	}
	if !strings.Contains(prompt, DefaultSourceTitle) {
		t.Error("empty title should fall back to the default")
	}
}

func TestPromptAssembler_Deterministic(t *testing.T) {
	p := NewPromptAssembler("Book")
	chunks := ranked("a", "b")
	if p.Assemble("q", chunks) != p.Assemble("q", chunks) {
		t.Error("assembly should be deterministic")
	}
}

func TestPromptAssembler_ZeroValue(t *testing.T) {
	var p PromptAssembler
	if !strings.Contains(p.Assemble("q", nil), DefaultSourceTitle) {
		t.Error("zero value should use the default title")
	}
}
