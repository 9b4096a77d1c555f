package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prepmic/internal/domain"
	"prepmic/internal/ports"
)

// Client talks to the OpenRouter chat-completions API. It serves question
// generation, answer evaluation, resume summarization and the overall
// performance summary.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewClient(apiKey string, baseURL string, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openrouter api key is required")
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
}

// GenerateQuestion implements ports.QuestionGenerator.
func (c *Client) GenerateQuestion(ctx context.Context, req ports.QuestionRequest) (string, error) {
	prompt := questionPrompt(req)
	content, err := c.complete(ctx, prompt, 0.7, 300)
	if err != nil {
		return "", fmt.Errorf("question generation: %w", err)
	}
	question := strings.TrimSpace(content)
	if question == "" {
		return "", errors.New("question generation: empty completion")
	}
	return question, nil
}

// EvaluateAnswer implements ports.AnswerEvaluator. A malformed completion is
// retried once; if the retry is malformed too, a heuristic fallback scores
// the answer locally. Transport errors are never papered over with the
// fallback: the caller decides how to handle an unreachable provider.
func (c *Client) EvaluateAnswer(ctx context.Context, req ports.EvaluationRequest) (domain.Evaluation, error) {
	prompt := evaluationPrompt(req)

	for attempt := 0; attempt < 2; attempt++ {
		content, err := c.complete(ctx, prompt, 0.2, 500)
		if err != nil {
			return domain.Evaluation{}, fmt.Errorf("answer evaluation: %w", err)
		}
		if evaluation, err := parseEvaluation(content); err == nil {
			return evaluation, nil
		}
	}
	return fallbackEvaluation(req.Answer), nil
}

// GenerateSummary implements ports.SummaryGenerator.
func (c *Client) GenerateSummary(ctx context.Context, role string, history []domain.QAExchange) (string, error) {
	if len(history) == 0 {
		return "", errors.New("summary generation: empty history")
	}
	content, err := c.complete(ctx, summaryPrompt(role, history), 0.5, 600)
	if err != nil {
		return "", fmt.Errorf("summary generation: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// SummarizeResume implements ports.ResumeSummarizer.
func (c *Client) SummarizeResume(ctx context.Context, resumeText string) (string, error) {
	content, err := c.complete(ctx, resumePrompt(resumeText), 0.3, 400)
	if err != nil {
		return "", fmt.Errorf("resume summarization: %w", err)
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no choices in completion")
	}
	return parsed.Choices[0].Message.Content, nil
}
