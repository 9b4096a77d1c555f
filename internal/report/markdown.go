package report

import (
	"fmt"
	"strings"

	"prepmic/internal/domain"
)

// MarkdownRenderer renders a finished interview as a markdown document the
// frontend offers for download.
type MarkdownRenderer struct{}

func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{}
}

func (r *MarkdownRenderer) Render(report domain.Report) ([]byte, error) {
	if len(report.History) == 0 {
		return nil, fmt.Errorf("report has no completed exchanges")
	}

	var sb strings.Builder
	sb.WriteString("# Interview Performance Report\n\n")

	sb.WriteString("## Interview Details\n\n")
	fmt.Fprintf(&sb, "- **Date:** %s\n", report.GeneratedAt.Format("January 2, 2006 at 3:04 PM"))
	fmt.Fprintf(&sb, "- **Role:** %s\n", report.Role)
	fmt.Fprintf(&sb, "- **Difficulty Level:** %s\n", report.Difficulty)
	fmt.Fprintf(&sb, "- **Language:** %s\n", languageName(report.Language))
	fmt.Fprintf(&sb, "- **Total Questions:** %d\n", report.NumQuestions)
	fmt.Fprintf(&sb, "- **Average Rating:** %.2f/10.00\n\n", report.AverageRating)

	sb.WriteString("## Overall Performance Summary\n\n")
	sb.WriteString(strings.TrimSpace(report.OverallSummary))
	sb.WriteString("\n\n")

	sb.WriteString("## Performance Assessment\n\n")
	fmt.Fprintf(&sb, "%s\n\n", assessmentLine(report.AverageRating))

	sb.WriteString("## Question-by-Question Analysis\n\n")
	for i, entry := range report.History {
		fmt.Fprintf(&sb, "### Question %d: %s\n\n", i+1, entry.Question)
		fmt.Fprintf(&sb, "**Your Answer:** %s\n\n", entry.Answer)
		fmt.Fprintf(&sb, "**Rating:** %.2f/10.00\n\n", entry.Evaluation.Rating)
		fmt.Fprintf(&sb, "**Strengths:** %s\n\n", entry.Evaluation.Strengths)
		fmt.Fprintf(&sb, "**Areas for Improvement:** %s\n\n", entry.Evaluation.Improvements)
		if points := entry.Evaluation.MissingPoints; points != "" && points != "N/A" {
			fmt.Fprintf(&sb, "**Missing Key Points:** %s\n\n", points)
		}
		sb.WriteString("---\n\n")
	}

	sb.WriteString("## Next Steps & Recommendations\n\n")
	sb.WriteString(recommendations(report.AverageRating))
	sb.WriteString("\n\n")

	sb.WriteString("*This report is generated for self-assessment and improvement purposes. Use the feedback to guide your interview preparation and skill development.*\n")

	return []byte(sb.String()), nil
}

func languageName(language domain.Language) string {
	if language == domain.LanguageHinglish {
		return "Hinglish"
	}
	return "English"
}

func assessmentLine(average float64) string {
	switch {
	case average >= 8.0:
		return "**Excellent** - Strong command of subject matter with clear articulation"
	case average >= 6.0:
		return "**Good** - Solid understanding with minor areas for improvement"
	case average >= 4.0:
		return "**Fair** - Basic knowledge demonstrated, needs focused development"
	default:
		return "**Needs Improvement** - Significant knowledge gaps identified"
	}
}

func recommendations(average float64) string {
	switch {
	case average >= 8.0:
		return `You demonstrated excellent knowledge and communication skills throughout the interview.

- Continue practicing with real-world scenarios and advanced technical questions
- Focus on system design and architectural thinking for senior-level positions
- Prepare behavioral interview questions to complement your technical strength
- Stay updated with latest industry trends and best practices`
	case average >= 6.0:
		return `You showed solid understanding of core concepts with some areas needing improvement.

- Review the specific topics where you received lower ratings
- Practice explaining technical concepts more clearly and concisely
- Work on providing complete answers that address all parts of questions
- Schedule follow-up mock interviews in 2-3 weeks to track improvement`
	case average >= 4.0:
		return `Your interview revealed gaps in knowledge and explanation skills that need attention.

- Strengthen fundamentals in your target domain through structured learning
- Practice explaining concepts out loud to improve articulation
- Create a study plan focusing on topics where you struggled
- Schedule another mock interview after 3-4 weeks of focused preparation`
	default:
		return `This interview identified substantial gaps that require dedicated preparation.

- Start with foundational concepts and build understanding from the ground up
- Break down complex topics into smaller, manageable study sessions
- Practice basic problems before moving to intermediate difficulty
- Schedule a follow-up mock interview after 4-6 weeks of intensive study`
	}
}
