package rag

import (
	"strings"

	"github.com/sha1n/vraagbaak/internal/domain"
)

// ContextSeparator separates retrieved chunks inside the prompt.
const ContextSeparator = "\n---\n"

const promptTemplate = `
Je bent een behulpzame expert. Gebruik deze informatie om de vraag te beantwoorden:
{context}

Vraag: {question}
Antwoord in het Nederlands.
`

// BuildPrompt interpolates the ranked chunks and the question into the answer template.
func BuildPrompt(question string, results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}

	// Single pass over the template: placeholders inside chunks or the question stay literal.
	r := strings.NewReplacer("{context}", strings.Join(texts, ContextSeparator), "{question}", question)
	return r.Replace(promptTemplate)
}
