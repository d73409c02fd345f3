package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kanakku/internal/core"
)

const extractionPrompt = "Extract merchant_name, purchased_at (ISO 8601), currency, amount, " +
	"tax, tip, discount, description and an array of line items from this receipt. " +
	"Each item needs line_no, item_name, quantity, unit, unit_price, line_total and " +
	"optional category_name. All monetary values are decimal numbers. " +
	"Respond only with JSON containing `header` and `items`."

// OpenAIParser extracts receipts through an OpenAI-compatible vision chat
// endpoint. Failures surface as retryable upstream errors, never as
// validation errors: a provider outage is not the caller's fault.
type OpenAIParser struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIParser(baseURL, apiKey, model string, timeout time.Duration) *OpenAIParser {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIParser{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat respFormat    `json:"response_format"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAIParser) Parse(ctx context.Context, data []byte, contentType string) (Parsed, error) {
	if contentType == "" {
		contentType = "image/png"
	}
	b64 := base64.StdEncoding.EncodeToString(data)
	body := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a receipt parsing assistant that always responds with JSON."},
			{Role: "user", Content: []map[string]any{
				{"type": "image_url", "image_url": map[string]string{
					"url": fmt.Sprintf("data:%s;base64,%s", contentType, b64),
				}},
				{"type": "text", "text": extractionPrompt},
			}},
		},
		ResponseFormat: respFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Parsed{}, fmt.Errorf("encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Parsed{}, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Parsed{}, &core.UpstreamError{Op: "receipt extraction", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Parsed{}, &core.UpstreamError{
			Op:    "receipt extraction",
			Cause: fmt.Errorf("provider returned %d: %s", resp.StatusCode, b),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Parsed{}, &core.UpstreamError{Op: "receipt extraction", Cause: err}
	}
	if len(cr.Choices) == 0 {
		return Parsed{}, &core.UpstreamError{Op: "receipt extraction", Cause: fmt.Errorf("empty response")}
	}

	var pp parsedPayload
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &pp); err != nil {
		return Parsed{}, &core.UpstreamError{Op: "receipt extraction", Cause: fmt.Errorf("unparsable provider JSON: %w", err)}
	}
	return pp.toParsed(), nil
}
