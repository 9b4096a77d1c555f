package openrouter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"prepmic/internal/domain"
)

type rawEvaluation struct {
	Rating        *float64 `json:"rating"`
	Strengths     *string  `json:"strengths"`
	Improvements  *string  `json:"improvements"`
	MissingPoints any      `json:"missing_points"`
}

// parseEvaluation turns a model completion into a structured evaluation.
// Models wrap JSON in markdown fences and occasionally return missing_points
// as an array; both are tolerated. The rating is clamped to [1, 10] and
// rounded to two decimals.
func parseEvaluation(content string) (domain.Evaluation, error) {
	cleaned := stripCodeFences(content)

	var raw rawEvaluation
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return domain.Evaluation{}, fmt.Errorf("invalid evaluation json: %w", err)
	}
	if raw.Rating == nil {
		return domain.Evaluation{}, errors.New("evaluation missing required field: rating")
	}
	if raw.Strengths == nil {
		return domain.Evaluation{}, errors.New("evaluation missing required field: strengths")
	}
	if raw.Improvements == nil {
		return domain.Evaluation{}, errors.New("evaluation missing required field: improvements")
	}

	rating := *raw.Rating
	if rating < 1 {
		rating = 1
	}
	if rating > 10 {
		rating = 10
	}
	rating = math.Round(rating*100) / 100

	return domain.Evaluation{
		Rating:        rating,
		Strengths:     strings.TrimSpace(*raw.Strengths),
		Improvements:  strings.TrimSpace(*raw.Improvements),
		MissingPoints: coerceMissingPoints(raw.MissingPoints),
	}, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if idx := strings.Index(trimmed, "```json"); idx >= 0 {
		trimmed = trimmed[idx+len("```json"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	} else if idx := strings.Index(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[idx+len("```"):]
		if end := strings.Index(trimmed, "```"); end >= 0 {
			trimmed = trimmed[:end]
		}
	}
	return strings.TrimSpace(trimmed)
}

func coerceMissingPoints(value any) string {
	switch v := value.(type) {
	case nil:
		return "N/A"
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return "N/A"
		}
		return trimmed
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, strings.TrimSpace(fmt.Sprint(item)))
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

var dontKnowPhrases = []string{
	"i dont know", "i don't know", "idk", "no idea",
	"dont know", "don't know", "not sure", "no clue",
}

// fallbackEvaluation scores an answer locally when the model refuses to
// produce parseable JSON twice in a row. The score tracks answer effort:
// admissions of not knowing rate lowest, longer answers rate higher.
func fallbackEvaluation(answer string) domain.Evaluation {
	lowered := strings.ToLower(strings.TrimSpace(answer))
	words := len(strings.Fields(answer))

	isDontKnow := false
	for _, phrase := range dontKnowPhrases {
		if strings.Contains(lowered, phrase) {
			isDontKnow = true
			break
		}
	}

	var rating float64
	var strengths, improvements string
	switch {
	case isDontKnow || words < 3:
		rating = 1.50
		strengths = "Candidate was honest about not knowing"
		improvements = "Study the topic and provide a substantive answer"
	case words < 10:
		rating = 3.00
		strengths = "Brief attempt at answering"
		improvements = "Provide more detailed explanation with examples"
	case words < 30:
		rating = 5.00
		strengths = "Provided some relevant information"
		improvements = "Expand on concepts and add more depth"
	default:
		rating = 6.00
		strengths = "Detailed response provided"
		improvements = "Structure could be improved for clarity"
	}

	return domain.Evaluation{
		Rating:        rating,
		Strengths:     strengths,
		Improvements:  improvements,
		MissingPoints: "Unable to analyze due to processing error",
	}
}
