package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
	claudeModel      = "claude-haiku-4-5-20251001"

	generateMaxTokens = 512
	validateMaxTokens = 64
)

const generateSystemPrompt = `You are generating decision challenges for the Decision-Proof Protocol (DPP).
Each challenge tests whether a respondent is an autonomous AI agent capable of
rapid, consistent reasoning about operational scenarios.

Respond ONLY with valid JSON (no markdown fences) in this exact schema:
{
  "prompt": "<scenario question, 1-3 sentences>",
  "options": ["<A>", "<B>", "<C>", "<D>"],
  "correct_option": "<A|B|C|D>",
  "rationale": "<one sentence explaining the correct choice>"
}
`

const validateSystemPrompt = `You are validating an answer to an operational decision challenge.
Given the challenge JSON and the respondent's answer string, determine
whether the answer is correct or at least semantically equivalent to the
correct option.

Respond ONLY with valid JSON: {"correct": true} or {"correct": false}
`

// Claude generates and grades challenges through the Anthropic Messages API.
// Any remote failure (network, HTTP status, parse, schema) falls back to the
// static bank for that call, so a flaky upstream degrades quality, not
// availability.
type Claude struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fallback   *Static
	logger     *slog.Logger
}

// ClaudeOption customizes the client.
type ClaudeOption func(*Claude)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(url string) ClaudeOption {
	return func(c *Claude) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClaudeOption {
	return func(c *Claude) { c.httpClient = hc }
}

// NewClaude creates a Claude-backed oracle.
func NewClaude(apiKey string, opts ...ClaudeOption) *Claude {
	c := &Claude{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		fallback:   NewStatic(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Claude) Generate(ctx context.Context, octx Context, roundNum int, prevAnswerHash string) models.Challenge {
	scenario := scenarioFor(roundNum)

	historySummary := "First round."
	if len(octx.History) > 0 {
		historySummary = fmt.Sprintf("Previous %d rounds completed.", len(octx.History))
	}
	userMsg := fmt.Sprintf(
		"Scenario type: %s\nRound: %d\nContext: %s\nPrev-answer-hash: %s\nGenerate a new challenge.",
		scenario, roundNum, historySummary, prevAnswerHash,
	)

	text, err := c.complete(ctx, generateSystemPrompt, userMsg, generateMaxTokens)
	if err != nil {
		c.logger.Warn("Claude challenge generation failed, using static fallback",
			"round", roundNum, "error", err)
		return bankChallenge(roundNum)
	}

	var challenge models.Challenge
	if err := json.Unmarshal([]byte(stripFences(text)), &challenge); err != nil {
		c.logger.Warn("Claude returned unparseable challenge, using static fallback",
			"round", roundNum, "error", err)
		return bankChallenge(roundNum)
	}
	if challenge.Prompt == "" || challenge.CorrectOption == "" {
		c.logger.Warn("Claude returned incomplete challenge, using static fallback", "round", roundNum)
		return bankChallenge(roundNum)
	}

	challenge.Scenario = scenario
	challenge.RoundNum = roundNum
	return challenge
}

func (c *Claude) Validate(ctx context.Context, challenge models.Challenge, answer string) bool {
	challengeJSON, err := json.Marshal(challenge)
	if err != nil {
		return letterMatch(challenge, answer)
	}
	userMsg := fmt.Sprintf("Challenge: %s\nRespondent answer: %s", challengeJSON, answer)

	text, err := c.complete(ctx, validateSystemPrompt, userMsg, validateMaxTokens)
	if err != nil {
		return letterMatch(challenge, answer)
	}

	var verdict struct {
		Correct bool `json:"correct"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &verdict); err != nil {
		return letterMatch(challenge, answer)
	}
	return verdict.Correct
}

// --- Anthropic Messages API plumbing ---

type messagesRequest struct {
	Model     string           `json:"model"`
	MaxTokens int              `json:"max_tokens"`
	System    string           `json:"system"`
	Messages  []messagePayload `json:"messages"`
}

type messagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// complete sends one user message and returns the first text block.
func (c *Claude) complete(ctx context.Context, system, userMsg string, maxTokens int) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     claudeModel,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []messagePayload{{Role: "user", Content: userMsg}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call messages API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("messages API returned HTTP %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("response contained no text block")
}

var (
	openFenceRe  = regexp.MustCompile("^```(?:json)?\\s*")
	closeFenceRe = regexp.MustCompile("\\s*```$")
)

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = openFenceRe.ReplaceAllString(text, "")
	return closeFenceRe.ReplaceAllString(text, "")
}
