package generation

// sectionTemplate is shared by the standard research sections. Each section
// adds its own guidance after it.
const sectionTemplate = "Create the {section} for a research report on the topic: {topic}. " +
	"Keywords: {keywords}. Research questions: {research_questions}."

// DefaultOutline returns the standard research report structure in document
// order.
func DefaultOutline() []SectionSpec {
	return []SectionSpec{
		{
			Title: "Introduction",
			PromptTemplate: sectionTemplate +
				" Introduce the topic, its background and why it matters, and state the research questions.",
		},
		{
			Title: "Literature Review",
			PromptTemplate: sectionTemplate +
				" Summarize the main findings, debates and gaps in existing work on the topic." +
				" Stay consistent with the introduction.",
		},
		{
			Title: "Methodology",
			PromptTemplate: sectionTemplate +
				" Describe a research design, data sources and analysis methods suited to the research questions.",
		},
		{
			Title: "Results",
			PromptTemplate: sectionTemplate +
				" Present the expected or reported findings for each research question, following the methodology.",
		},
		{
			Title: "Discussion",
			PromptTemplate: sectionTemplate +
				" Interpret the results against the literature review, and note limitations and implications.",
		},
		{
			Title: "Conclusion",
			PromptTemplate: sectionTemplate +
				" Conclude the report: answer the research questions briefly and suggest future work.",
		},
	}
}

// ExecutiveSummarySpec returns an optional closing section that condenses
// everything generated before it.
func ExecutiveSummarySpec() SectionSpec {
	return SectionSpec{
		Title: "Executive Summary",
		PromptTemplate: "Write a concise executive summary of the following research report on {topic}. " +
			"Highlight the key findings, conclusions and recommendations in at most three paragraphs." +
			"\n\n{prior}",
	}
}
