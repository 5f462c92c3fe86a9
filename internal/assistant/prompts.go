package assistant

import (
	"fmt"
	"strings"

	"github.com/helixir/research-assistant-service/internal/domain"
)

const (
	initialContentSystem = "You are an academic research assistant. Based on the user's research topic, generate initial content that includes: 1) A brief overview of the topic, 2) 5 potential key points to explore, 3) A suggested report outline with sections. Keep it concise but informative."

	strategiesSystem = "You are an academic research assistant. Generate 3 effective search strategies for finding academic papers on this topic based on the user's preferences. Each strategy should include specific keywords, boolean operators, and any other techniques to optimize academic database searches."

	searchQueriesSystem = "You are an academic research assistant specializing in literature search. Generate 3 highly specific search queries for finding relevant academic papers on this topic. Each query should:\n" +
		"1. Be optimized for academic search engines\n" +
		"2. Include specific keywords, boolean operators (AND, OR, NOT), and quotation marks for exact phrases\n" +
		"3. Be focused on different aspects of the research topic based on user preferences\n" +
		"4. Be formatted for direct use in academic databases\n\n" +
		"Format each query on its own line, without numbering or additional explanation."

	validatePapersSystem = "You are an academic research assistant. Review the list of papers found for a research topic and rate their relevance on a scale of 1-10. For each paper, provide a brief explanation of why it's relevant or not relevant to the research topic. Return a JSON object with a \"papers\" array containing every paper with these additional fields: relevanceScore (number 1-10) and relevanceExplanation (string)."

	reportSystem = "You are an academic research assistant with expertise in creating comprehensive research reports. Generate a detailed academic report in Markdown format with proper APA citations. The report should follow the outline and incorporate the key points specified by the user. Use the selected papers to support the arguments and provide academic backing. Include:\n" +
		"1. An introduction that frames the research topic\n" +
		"2. Main sections as outlined in the user's feedback\n" +
		"3. A literature review that critically analyzes the selected papers\n" +
		"4. A methodology section if applicable\n" +
		"5. A findings/discussion section that synthesizes the research\n" +
		"6. A conclusion that summarizes key insights and suggests future research directions\n" +
		"7. A properly formatted APA references section"

	reportInstruction = "\nPlease generate a comprehensive academic report in Markdown format with proper APA citations based on the user's preferences and the selected papers. The report should be well-structured, academically rigorous, and suitable for an academic audience."
)

// stagePrompt holds the system prompt and closing instruction for one
// confirmation stage.
type stagePrompt struct {
	system      string
	instruction string
}

var stagePrompts = map[domain.Stage]stagePrompt{
	domain.StageOutline: {
		system:      "You are an academic research assistant. Based on the user's research topic and any previous feedback, suggest a report outline with 4-6 main sections. Then ask if they want to modify this outline in any way.",
		instruction: "Please suggest a report outline for this topic and ask if the user wants to make any changes.",
	},
	domain.StageKeyPoints: {
		system:      "You are an academic research assistant. Based on the user's research topic and approved outline, suggest 5 key points that should be covered in the report. Then ask if they want to add, remove, or modify any of these points.",
		instruction: "Please suggest 5 key points for this report and ask if the user wants to make any changes.",
	},
	domain.StageFinal: {
		system:      "You are an academic research assistant. Summarize the report plan based on all previous feedback and ask if the user is satisfied with this plan before proceeding to generate the report.",
		instruction: "Please summarize the report plan and ask for final confirmation.",
	},
}

// Feedback context headers and question labels.
const (
	confirmationHeader = "User feedback so far:"
	confirmationLabel  = "Question"
	preferencesHeader  = "User preferences and feedback:"
	preferencesLabel   = "Q"
)

// buildFeedbackContext renders the research topic followed by every
// question/answer exchange.
func buildFeedbackContext(prompt, header, label string, feedback []domain.Feedback) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research topic: %s\n\n", prompt)
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, fb := range feedback {
		fmt.Fprintf(&sb, "%s: %s\nUser's response: %s\n\n", label, fb.Question, fb.Answer)
	}
	return sb.String()
}

// buildReportContext renders feedback, strategies and the selected papers
// for the report prompt.
func buildReportContext(in ReportInput) string {
	var sb strings.Builder
	sb.WriteString(buildFeedbackContext(in.Prompt, preferencesHeader, preferencesLabel, in.Feedback))

	sb.WriteString("Search Strategies:\n")
	for i, strategy := range in.Strategies {
		fmt.Fprintf(&sb, "Strategy %d: %s\n\n", i+1, strategy)
	}

	sb.WriteString("Selected Papers for Citation:\n")
	for i := range in.Papers {
		p := &in.Papers[i]
		year := "Unknown"
		if p.Year != nil && *p.Year != 0 {
			year = fmt.Sprintf("%d", *p.Year)
		}
		fmt.Fprintf(&sb, "Paper %d:\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", p.Title)
		fmt.Fprintf(&sb, "Authors: %s\n", orDefault(p.AuthorNames(""), "Unknown"))
		fmt.Fprintf(&sb, "Year: %s\n", year)
		fmt.Fprintf(&sb, "DOI: %s\n", orDefault(p.DOI, "N/A"))
		fmt.Fprintf(&sb, "Abstract: %s\n\n", orDefault(p.Abstract, "N/A"))
	}
	return sb.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
