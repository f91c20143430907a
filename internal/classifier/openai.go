package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/rocketwin/funnel-bot/internal/i18n"
)

// OpenAIClassifier asks a chat model to label the user's intent and draft
// a reply. Constructed explicitly and passed around; there is no ambient
// shared instance.
type OpenAIClassifier struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, baseURL, model, proxyURL string) (*OpenAIClassifier, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		config.HTTPClient = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxy)},
		}
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (c *OpenAIClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		if isQuotaError(err) {
			return Result{}, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
		return Result{}, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("empty completion for user %d", req.UserID)
	}

	result, err := parseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{}, err
	}
	log.Printf("Intent for user %d (state %s): %s", req.UserID, req.State, result.Intent)
	return result, nil
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.HTTPStatusCode == http.StatusTooManyRequests &&
		strings.Contains(strings.ToLower(apiErr.Message), "quota")
}

// parseResult strips the code fences models like to wrap JSON in.
func parseResult(raw string) (Result, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Result{}, fmt.Errorf("malformed classifier response: %w", err)
	}
	if result.Intent == "" {
		return Result{}, fmt.Errorf("classifier response missing intent")
	}
	return result, nil
}

func buildPrompt(req Request) string {
	replyLanguage := "Hinglish (a casual, friendly mix of Hindi and English)"
	if req.Language == i18n.HI {
		replyLanguage = "Hindi"
	}

	var history strings.Builder
	for _, m := range req.History {
		history.WriteString(string(m.Role))
		history.WriteString(": ")
		history.WriteString(m.Text)
		history.WriteString("\n")
	}

	return fmt.Sprintf(`You are a customer service assistant for a gaming service. Your goal is to guide the user through a conversation flow.
The user's preferred language is %s.
The user's current conversation state is: %q.

Conversation History:
%s
---
User's Latest Message: %q
---
**Conversation Flow Logic:**
- If state is 'awaiting_service_confirmation', user is answering "do you need our service?". Intent should be 'service_request' or 'rejection'.
- If state is 'awaiting_experience_confirmation', user is answering "have you played before?". Intent should be 'played_before' or 'new_player'.
- If state is 'awaiting_registration_confirmation', user is answering "have you registered?". Intent should be 'registration_complete'.
- If state is 'awaiting_re_engagement', user is answering "do you want to try the game?". Intent should be 'service_request' or 'rejection'.
- Any other message should be 'small_talk'.

**Classify the user's intent into ONE of the following categories based on the logic above:**
1. "service_request": User wants the service.
2. "rejection": User does not want the service.
3. "played_before": User says they have played before.
4. "new_player": User says they are a new player.
5. "registration_complete": User confirms they have completed registration.
6. "registration_not_complete": User has not confirmed that the registration has been completed.
7. "small_talk": Any other message.

If the intent is "small_talk" or "rejection", please generate a friendly reply in %s.

Please return the result strictly in the following JSON format:
{
  "intent": "...",
  "reply": "..."
}`, replyLanguage, req.State, history.String(), req.Message, replyLanguage)
}
