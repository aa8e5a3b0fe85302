package generation

import "strings"

// SectionBoundary separates consecutive sections in the prior context that is
// threaded into later prompts.
const SectionBoundary = "\n\n---\n\n"

// Placeholders recognized in prompt templates.
const (
	PlaceholderTopic             = "{topic}"
	PlaceholderKeywords          = "{keywords}"
	PlaceholderResearchQuestions = "{research_questions}"
	PlaceholderSources           = "{sources}"
	PlaceholderSection           = "{section}"
	PlaceholderPrior             = "{prior}"
)

const (
	priorHeading        = "Previously written sections of this report:"
	sourcesHeading      = "Source material:"
	instructionsHeading = "Additional instructions:"
)

// Vars are the report-level values substituted into prompt templates.
type Vars struct {
	Topic             string
	Keywords          []string
	ResearchQuestions []string

	// Sources is pre-rendered source material gathered for the report.
	Sources string

	// Instructions are extra directions appended to every prompt built
	// with these vars. Used when a single section is regenerated.
	Instructions string
}

// BuildPrompt renders spec's template for vars and prior, the boundary-joined
// text of earlier sections.
//
// A template that does not reference {prior} still receives non-empty prior
// context, appended under a heading, so that every section after the first
// sees its predecessors. The same applies to {sources}. Unknown placeholders
// are left as written.
func BuildPrompt(systemPrompt string, spec SectionSpec, vars Vars, prior string) string {
	replacer := strings.NewReplacer(
		PlaceholderTopic, vars.Topic,
		PlaceholderKeywords, strings.Join(vars.Keywords, ", "),
		PlaceholderResearchQuestions, strings.Join(vars.ResearchQuestions, "; "),
		PlaceholderSources, vars.Sources,
		PlaceholderSection, spec.Title,
		PlaceholderPrior, prior,
	)

	var b strings.Builder
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString(replacer.Replace(spec.PromptTemplate))

	if prior != "" && !strings.Contains(spec.PromptTemplate, PlaceholderPrior) {
		appendBlock(&b, priorHeading, prior)
	}
	if vars.Sources != "" && !strings.Contains(spec.PromptTemplate, PlaceholderSources) {
		appendBlock(&b, sourcesHeading, vars.Sources)
	}
	if instructions := strings.TrimSpace(vars.Instructions); instructions != "" {
		appendBlock(&b, instructionsHeading, instructions)
	}

	return b.String()
}

func appendBlock(b *strings.Builder, heading, body string) {
	b.WriteString("\n\n")
	b.WriteString(heading)
	b.WriteString("\n\n")
	b.WriteString(body)
}

// MaxQuestionContext is the number of runes of report content included when
// answering a question. Longer content keeps its end, where the conclusions
// are.
const MaxQuestionContext = 8000

// BuildQuestionPrompt asks the model to answer question from content alone.
func BuildQuestionPrompt(systemPrompt, content, question string) string {
	if runes := []rune(content); len(runes) > MaxQuestionContext {
		content = string(runes[len(runes)-MaxQuestionContext:])
	}

	var b strings.Builder
	if systemPrompt = strings.TrimSpace(systemPrompt); systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString("Based on the following research content, answer the user's question. ")
	b.WriteString("If the answer is not in the content, say that the research does not cover it.\n\n")
	b.WriteString("--- Research Content ---\n")
	b.WriteString(content)
	b.WriteString("\n--- End Research Content ---\n\n")
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\n\nAnswer clearly and concisely, using only the research content above.")
	return b.String()
}
