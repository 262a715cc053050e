package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MinderBot/MinderBot/internal/config"
)

const systemPrompt = `You are the intent parser for a personal reminder assistant.
Given the user's message and recent conversation, return ONLY a JSON object:
{"action": "...", "fields": {...}, "confidence": 0-100, "unparseable": false}

Actions: create_reminder, delete_reminder, list_reminders, create_list,
add_list_item, show_list, delete_list_item, save_memory, search_memory,
delete_memory, chat.

Field rules:
- "time" must be 24h HH:MM, only when the clock time is unambiguous.
- If the user gave an hour with no AM/PM (e.g. "at 4"), set "ambiguous_hour"
  to that hour and leave "time" empty.
- Set "vague_time" true for expressions like "later" or "soon".
- "date" is YYYY-MM-DD resolved against the current date, empty if absent.
- "recurrence" is one of daily, weekly, weekdays, weekends, monthly;
  "recurrence_day" is the weekday (0=Sunday) or day-of-month it applies to.
- For deletes and searches put the target phrase in "query".
- Use "chat" with low confidence for greetings and idle talk.
- Set "unparseable" true when you cannot make sense of the message.`

// OpenAIInterpreter implements Interpreter against any OpenAI-compatible
// chat-completions API.
type OpenAIInterpreter struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

// NewOpenAIInterpreter creates an interpreter client from configuration.
func NewOpenAIInterpreter(cfg config.InterpreterConfig) *OpenAIInterpreter {
	base := cfg.APIBase
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIInterpreter{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimSuffix(base, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Interpret sends the message and context to the model and parses the JSON
// verdict. An unusable model reply comes back as an unparseable Result, not
// an error: the caller re-asks the user generically.
func (p *OpenAIInterpreter) Interpret(ctx context.Context, text string, history []ContextMessage) (*Result, error) {
	messages := []map[string]string{
		{"role": "system", "content": systemPrompt},
		{"role": "system", "content": "Current date/time (UTC): " + time.Now().UTC().Format(time.RFC3339)},
	}
	for _, m := range history {
		messages = append(messages, map[string]string{"role": m.Role, "content": m.Content})
	}
	messages = append(messages, map[string]string{"role": "user", "content": text})

	body := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"max_tokens":  300,
		"temperature": 0.0,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("interpreter API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return &Result{Unparseable: true}, nil
	}

	return ParseVerdict(apiResp.Choices[0].Message.Content), nil
}

// ParseVerdict extracts a Result from the model's raw reply, tolerating code
// fences. Anything that does not decode is an unparseable verdict.
func ParseVerdict(raw string) *Result {
	txt := strings.TrimSpace(raw)
	txt = strings.TrimPrefix(txt, "```json")
	txt = strings.TrimPrefix(txt, "```")
	txt = strings.TrimSuffix(txt, "```")
	txt = strings.TrimSpace(txt)

	var res Result
	if err := json.Unmarshal([]byte(txt), &res); err != nil {
		return &Result{Unparseable: true}
	}
	if res.Confidence < 0 {
		res.Confidence = 0
	}
	if res.Confidence > 100 {
		res.Confidence = 100
	}
	return &res
}
