package openrouter

import (
	"fmt"
	"strings"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

const questionTemplateEN = `You are an expert technical interviewer conducting a %[1]s difficulty interview for a %[2]s position.

Resume Summary:
%[3]s

Current Difficulty Level: %[1]s

Last Answer Rating: %[4]s/10

Conversation History:
%[5]s

Instructions:
1. Generate ONE relevant interview question appropriate for the %[1]s level.
2. The question should be based on the candidate's resume and the role requirements.
3. For Easy: Focus on fundamental concepts and definitions.
4. For Medium: Ask about practical applications and problem-solving.
5. For Hard: Dive into complex scenarios, system design, or advanced concepts.
6. Ensure variety - don't repeat similar questions.
7. Keep questions clear and concise (max 2 sentences).

TONE INSTRUCTIONS (CRITICAL):
- Be conversational and human-like.
- **CONDITIONAL PRAISE**: If last_rating >= 7.0, use positive reinforcement (e.g., "Great explanation!", "That's a solid answer."). If last_rating < 7.0 or is "N/A", use neutral transitions (e.g., "Moving on...", "Let's discuss...").
- Use natural transitions based on the previous answer context.
- **DO NOT** use robotic meta-commentary like "Here is your question", "Based on your resume", or "Let's switch topics". Just ask the question naturally.
- **DO NOT** explicitly mention the difficulty level or rating score in your output.

Generate the next interview question:`

const questionTemplateHI = `Aap ek expert technical interviewer hain jo %[2]s profile ke liye %[1]s difficulty level ka interview le rahe hain.

Resume Summary:
%[3]s

Current Difficulty Level: %[1]s

Last Answer Rating: %[4]s/10

Conversation History:
%[5]s

Instructions:
1. %[1]s level ke liye ek relevant interview question generate kijiye.
2. Question candidate ke resume aur role requirements par based hona chahiye.
3. Easy ke liye: Basic concepts aur definitions par focus karein.
4. Medium ke liye: Practical applications aur problem-solving ke baare mein puchiye.
5. Hard ke liye: Complex scenarios, system design ya advanced concepts mein jaiye.
6. Variety ensure karein - similar questions repeat mat kijiye.

TONE INSTRUCTIONS (CRITICAL):
- Conversational aur human-like rahiye.
- **CONDITIONAL PRAISE**: Agar last_rating >= 7.0 hai, toh positive reinforcement dijiye (jaise, "Bahut badhiya!", "Ekdum sahi!", "Great answer!"). Agar last_rating < 7.0 ya "N/A" hai, toh neutral transitions use karein (jaise, "Chalo aage badhte hain...", "Ab next topic pe baat karte hain...").
- Previous answer ke context ke basis par natural transitions use karein.
- **Robotic meta-commentary mat dijiye** jaise "Yeh hai aapka question", "Aapke resume ke basis par". Bas naturally question puchiye.
- Apne output mein difficulty level ya rating score ka mention mat karein.

Agla interview question generate karein (Hinglish mein):`

const evaluationTemplateEN = `You are an expert interviewer evaluating a candidate's answer.
Note: This answer is transcribed from speech, so focus on content rather than minor grammatical issues.

Interview Question: %s

Candidate's Answer: %s

Provide your evaluation in the following JSON format (BE CONCISE):
{
    "rating": <float between 1.00 and 10.00, two decimal places>,
    "strengths": "<brief points on what was good, max 50 words>",
    "improvements": "<specific suggestions, max 50 words>",
    "missing_points": "<key concepts not mentioned, max 50 words>"
}

IMPORTANT: Respond ONLY with valid JSON, no additional text. Keep all fields under 50 words each.`

const evaluationTemplateHI = `Aap ek expert interviewer hain jo candidate ke answer ka evaluation kar rahe hain.

Note: Candidate ne English, Hindi, ya Hinglish (mix) mein answer diya hoga.
Speech-to-text transcription mein errors ho sakti hain.

Interview Question: %s

Candidate ka Answer: %s

Niche diye gaye JSON format mein apna evaluation provide karein (concise rakhein):
{
    "rating": <1.00 se 10.00 ke beech float, do decimal places>,
    "strengths": "<Kya achha tha - Hinglish mein, max 50 words>",
    "improvements": "<Improvement ke liye suggestions - Hinglish mein, max 50 words>",
    "missing_points": "<Jo main concepts nahi bataye gaye - Hinglish mein, max 50 words>"
}

Important: Sirf valid JSON mein answer dein, koi extra text nahi. Saare fields 50 words se kam rakhein.`

const summaryTemplate = `You are an expert career coach reviewing a candidate's complete interview performance.

Role: %s
Number of Questions: %d
Average Rating: %.2f/10.00

Detailed Q&A History:
%s

Provide a comprehensive performance summary covering:
1. Overall Strengths: Key areas where the candidate excelled
2. Areas for Improvement: Specific topics or skills needing development
3. Readiness Assessment: Is the candidate ready for this role? (Be honest)
4. Actionable Recommendations: 3-5 specific steps to improve

Keep the summary professional, constructive, and actionable (200-250 words).`

const resumeTemplate = `You are an expert resume analyzer. Your task is to read the provided resume text and generate a concise, structured summary in exactly 150 words.

Focus on:
1. Professional background and years of experience
2. Key technical skills and expertise areas
3. Notable achievements or projects
4. Educational qualifications
5. Domain specialization

Resume Text:
%s

Provide a professional summary that captures the candidate's core competencies.`

func questionPrompt(req ports.QuestionRequest) string {
	template := questionTemplateEN
	if req.Language == domain.LanguageHinglish {
		template = questionTemplateHI
	}

	lastRating := "N/A"
	if len(req.History) > 0 {
		lastRating = fmt.Sprintf("%.2f", req.History[len(req.History)-1].Evaluation.Rating)
	}

	summary := req.ResumeSummary
	if summary == "" {
		summary = "Not provided."
	}

	return fmt.Sprintf(template, req.Difficulty, req.Role, summary, lastRating, formatHistory(req.History))
}

func evaluationPrompt(req ports.EvaluationRequest) string {
	template := evaluationTemplateEN
	if req.Language == domain.LanguageHinglish {
		template = evaluationTemplateHI
	}
	return fmt.Sprintf(template, req.Question, req.Answer)
}

func summaryPrompt(role string, history []domain.QAExchange) string {
	var sb strings.Builder
	var total float64
	for i, entry := range history {
		fmt.Fprintf(&sb, "\nQ%d: %s\n", i+1, entry.Question)
		fmt.Fprintf(&sb, "A%d: %s\n", i+1, entry.Answer)
		fmt.Fprintf(&sb, "Rating: %.2f/10 | Strengths: %s | Improvements: %s\n",
			entry.Evaluation.Rating, entry.Evaluation.Strengths, entry.Evaluation.Improvements)
		total += entry.Evaluation.Rating
	}
	average := total / float64(len(history))
	return fmt.Sprintf(summaryTemplate, role, len(history), average, sb.String())
}

func resumePrompt(resumeText string) string {
	return fmt.Sprintf(resumeTemplate, resumeText)
}

func formatHistory(history []domain.QAExchange) string {
	if len(history) == 0 {
		return "No previous questions asked yet."
	}
	var sb strings.Builder
	for i, entry := range history {
		fmt.Fprintf(&sb, "Q%d: %s\n", i+1, entry.Question)
		fmt.Fprintf(&sb, "A%d: %s (Rating: %.2f/10)\n\n", i+1, entry.Answer, entry.Evaluation.Rating)
	}
	return strings.TrimSpace(sb.String())
}
