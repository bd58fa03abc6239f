package utils

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Random121/nwhacks-2026/models"
)

// ErrAmbiguousJudgement is returned when the judge's reply matches neither
// the YES nor the NO convention. Callers log it and treat the cycle as
// on-track; it never aborts the session.
var ErrAmbiguousJudgement = errors.New("judge response is neither YES nor NO")

const criteriaCacheTTL = 24 * time.Hour

// JudgeClient is the screen judge: an OpenAI-compatible chat-completions
// client pointed at OpenRouter. It derives the per-session distraction
// criteria once and then judges screenshots against them.
type JudgeClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger

	// Optional: caches goal -> derived criteria so restarting a session with
	// the same goal does not re-bill the text model. Nil disables caching.
	cache *redis.Client

	// Swappable for tests.
	grabScreen func() ([]byte, error)
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

func NewJudgeClient(cfg *models.Config, cache *redis.Client, logger *zap.Logger) *JudgeClient {
	return &JudgeClient{
		apiKey:     cfg.OpenRouterKey,
		baseURL:    cfg.OpenRouterBaseURL,
		model:      cfg.VisionModel,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		cache:      cache,
		grabScreen: CaptureScreenJPEG,
	}
}

// DeriveCriteria asks the judge what counts as a distraction for this goal.
// The result is immutable for the session's lifetime.
func (c *JudgeClient) DeriveCriteria(ctx context.Context, goal string) (string, error) {
	if cached, ok := c.cachedCriteria(ctx, goal); ok {
		c.logger.Info("Using cached distraction criteria", zap.String("goal", goal))
		return cached, nil
	}

	prompt := fmt.Sprintf(
		"The user wants to focus on this goal: '%s'. "+
			"List 3-5 specific categories of screen content (websites, apps, activities) "+
			"that would be counterproductive or distracting for this specific goal. "+
			"Return ONLY a comma-separated list of these categories.", goal)

	requestBody := map[string]interface{}{
		"model":    c.model,
		"messages": []chatMessage{{Role: "user", Content: prompt}},
	}

	criteria, err := c.sendRequest(ctx, requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to derive distraction criteria: %w", err)
	}

	c.storeCriteria(ctx, goal, criteria)
	return criteria, nil
}

// JudgeScreen captures the desktop and asks the judge whether the user is
// distracted. Ambiguous replies return ErrAmbiguousJudgement.
func (c *JudgeClient) JudgeScreen(ctx context.Context, goal, criteria string) (models.Verdict, error) {
	screen, err := c.grabScreen()
	if err != nil {
		return models.OnTrack(), fmt.Errorf("failed to capture screen: %w", err)
	}

	prompt := fmt.Sprintf(
		"You are a productivity focus guard. "+
			"User Goal: '%s'. "+
			"Activities defined as distractions: %s. "+
			"Analyze this screenshot of the user's desktop. "+
			"Determine if the user is currently distracted by irrelevant content. "+
			"If they are working on their goal or have a blank desktop, they are NOT distracted. "+
			"Answer strictly in this format: 'YES: [Reason]' or 'NO'.", goal, criteria)

	imageURL := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(screen))
	content := []imageContent{
		{Type: "text", Text: prompt},
		{
			Type: "image_url",
			ImageURL: &struct {
				URL string `json:"url"`
			}{URL: imageURL},
		},
	}

	requestBody := map[string]interface{}{
		"model":      c.model,
		"messages":   []chatMessage{{Role: "user", Content: content}},
		"max_tokens": 100,
	}

	reply, err := c.sendRequest(ctx, requestBody)
	if err != nil {
		return models.OnTrack(), err
	}

	return ParseJudgement(reply)
}

// ParseJudgement applies the strict textual convention: a leading
// case-insensitive YES (optionally "YES: reason") means distracted, a leading
// NO means on-track, anything else is ambiguous.
func ParseJudgement(reply string) (models.Verdict, error) {
	trimmed := strings.TrimSpace(reply)
	upper := strings.ToUpper(trimmed)

	switch {
	case strings.HasPrefix(upper, "YES"):
		reason := "Unknown distraction"
		if idx := strings.Index(trimmed, ":"); idx >= 0 {
			if r := strings.TrimSpace(trimmed[idx+1:]); r != "" {
				reason = r
			}
		}
		return models.Distracted(models.SourceScreen, reason), nil
	case strings.HasPrefix(upper, "NO"):
		return models.OnTrack(), nil
	default:
		return models.OnTrack(), fmt.Errorf("%w: %q", ErrAmbiguousJudgement, trimmed)
	}
}

func (c *JudgeClient) sendRequest(ctx context.Context, requestBody map[string]interface{}) (string, error) {
	requestBodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// OpenRouter attribution headers
	req.Header.Set("HTTP-Referer", "https://github.com/FocusGuard")
	req.Header.Set("X-Title", "FocusGuard Desktop App")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var response chatResponse
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in judge API response")
	}

	content := response.Choices[0].Message.Content
	c.logger.Debug("Judge response content", zap.String("content", content))
	return content, nil
}

func criteriaCacheKey(goal string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(goal))))
	return fmt.Sprintf("focusguard:criteria:%x", sum[:16])
}

func (c *JudgeClient) cachedCriteria(ctx context.Context, goal string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	val, err := c.cache.Get(ctx, criteriaCacheKey(goal)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Criteria cache read failed", zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (c *JudgeClient) storeCriteria(ctx context.Context, goal, criteria string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, criteriaCacheKey(goal), criteria, criteriaCacheTTL).Err(); err != nil {
		c.logger.Warn("Criteria cache write failed", zap.Error(err))
	}
}
