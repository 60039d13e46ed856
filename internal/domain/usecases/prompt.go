// Package usecases - prompt.go builds the grounding-aware prompt sent to the LLM.
package usecases

import (
	"fmt"
	"strings"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

// RefusalSentence is what the model must answer when the context is unrelated.
const RefusalSentence = "Does not seem to be related to our topic."

// DefaultSourceTitle names the reference material when none is configured.
const DefaultSourceTitle = "the reference material"

// PromptAssembler turns a query and its ranked context into a prompt.
// It is a pure value: no I/O, same inputs give the same prompt.
type PromptAssembler struct {
	// SourceTitle names the corpus in the instructions, e.g. a book title.
	SourceTitle string
}

// NewPromptAssembler creates an assembler for the given corpus title.
func NewPromptAssembler(sourceTitle string) PromptAssembler {
	if strings.TrimSpace(sourceTitle) == "" {
		sourceTitle = DefaultSourceTitle
	}
	return PromptAssembler{SourceTitle: sourceTitle}
}

// Assemble builds a context-grounded prompt, or the fallback variant when chunks is empty.
func (p PromptAssembler) Assemble(query string, chunks []entities.RankedChunk) string {
	title := p.SourceTitle
	if title == "" {
		title = DefaultSourceTitle
	}
	if len(chunks) == 0 {
		return p.fallback(title, query)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are answering a question using excerpts from %q. Use only the provided context to answer the question.\n\n", title)
	sb.WriteString("If the context does not relate to the question, reply with:\n")
	fmt.Fprintf(&sb, "%q\n\n", RefusalSentence)
	fmt.Fprintf(&sb, "Do not assume anything outside the context. If you include information that is not found directly in the context, you must state that it is based on your own limited knowledge and not from %q.\n\n", title)
	sb.WriteString("---\n\nContext:\n")
	sb.WriteString(strings.Join(texts, "\n\n"))
	sb.WriteString("\n\n---\n\nQuestion:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:\n")
	return sb.String()
}

func (p PromptAssembler) fallback(title, query string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "No relevant context was found in %q.\n\n", title)
	sb.WriteString("Start your answer with:\n")
	sb.WriteString(RefusalSentence)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "If you include any information, you must explicitly state that it is based on your own limited knowledge and not from %q.\n\n", title)
	sb.WriteString("---\n\nQuestion:\n")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:\n")
	return sb.String()
}
