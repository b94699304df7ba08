// Package prompt assembles the instruction prompt handed to the generation
// model. The template is deterministic: identical inputs always produce the
// identical prompt, which keeps retrieval evaluation reproducible.
package prompt

import "strings"

// header is the fixed task instruction and rule block. It is never truncated
// and never varies per query; the "cannot find" rule is what makes the model
// produce a recognizable no-answer response when the context is empty or
// irrelevant.
const header = `**Task:** Answer the question using ONLY the provided context.
**Rules:**
- **MUST** include all key details.
- If the answer is not in the context, say "cannot find."
- Organize information clearly.`

// answerCue closes the prompt and primes the model for a prose answer.
const answerCue = "**Answer (detailed, in complete sentences):**"

// Build assembles the prompt from a question and chunk texts in ranking
// order. An empty chunk list leaves the context section empty but keeps the
// template structure intact, so the rule block still steers the model to the
// "cannot find" response.
func Build(question string, chunks []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n\n**Context:**\n")
	sb.WriteString(strings.Join(chunks, "\n\n"))
	sb.WriteString("\n\n**Question:**\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(answerCue)
	return sb.String()
}
