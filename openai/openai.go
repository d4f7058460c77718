package openai

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

const promptExtract = `You are an expert at extracting structured information from educational documents (degrees, marksheets, certificates).

Analyze the provided document image and extract:
- The student's full name.
- The name of the issuing university or institution.
- The official name of the degree, certificate or marksheet title.
- The date of issue in YYYY-MM-DD format.
- The full text content of the document.

Prioritize accuracy. If a field is not clearly present, use an empty string.

Output a single valid JSON object and nothing else, with this exact shape:
{
  "student_name": "<or empty string>",
  "university_name": "<or empty string>",
  "degree_name": "<or empty string>",
  "date_of_issue": "<YYYY-MM-DD or empty string>",
  "extracted_text": "<full document text>"
}`

type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client represents an OpenAI API client
type Client struct {
	apiKey string
	model  string
	client *http.Client
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

// SourceName identifies this provider in logs
func (c *Client) SourceName() string {
	return "ChatGPT"
}

// encodeImageToBase64 converts image bytes to base64 data URL
func encodeImageToBase64(imageData []byte) string {
	base64Data := base64.StdEncoding.EncodeToString(imageData)
	return fmt.Sprintf("data:image/png;base64,%s", base64Data)
}

// ExtractFields sends the document image to OpenAI's vision API and returns
// the raw JSON string with the extracted fields.
func (c *Client) ExtractFields(imageData []byte) (string, error) {
	systemPrompt := TextContent{
		Type: "text",
		Text: promptExtract,
	}

	imagePrompt := ImageContent{
		Type: "image_url",
		ImageURL: ImageURL{
			URL: encodeImageToBase64(imageData),
		},
	}

	reqBody := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{
				Role: "system",
				Content: []any{
					systemPrompt,
				},
			},
			{
				Role: "user",
				Content: []any{
					imagePrompt,
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", openAIEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	// Extract the text content from the response
	content := chatResp.Choices[0].Message.Content
	if contentStr, ok := content.(string); ok {
		return contentStr, nil
	}

	// If content is not a string, try to marshal it back to JSON
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to marshal content: %w", err)
	}

	return string(contentJSON), nil
}
