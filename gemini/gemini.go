package gemini

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

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

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
	Contents         []content        `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type Client struct {
	apiKey string
	model  string
	http   *http.Client
}

func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		http:   &http.Client{},
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// ExtractFields sends the document image to Gemini and returns the raw JSON
// string with the extracted fields.
func (c *Client) ExtractFields(imageData []byte) (string, error) {
	parts := []part{{Text: promptExtract}}
	if len(imageData) > 0 {
		parts = append(parts, part{
			InlineData: &inlineData{
				MimeType: "image/png",
				Data:     base64.StdEncoding.EncodeToString(imageData),
			},
		})
	}

	reqBody := geminiRequest{
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
		Contents: []content{
			{
				Role:  "user",
				Parts: parts,
			},
		},
	}

	return c.generateContent(reqBody)
}

func (c *Client) generateContent(body geminiRequest) (string, error) {
	// try v1beta first, then v1
	endpoints := []string{
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", c.model, c.apiKey),
		fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent?key=%s", c.model, c.apiKey),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for _, ep := range endpoints {
		req, err := http.NewRequest("POST", ep, bytes.NewBuffer(data))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			continue
		}
		defer resp.Body.Close()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
			// retry next endpoint if available
			continue
		}
		var gr geminiResponse
		if err := json.Unmarshal(bodyBytes, &gr); err != nil {
			lastErr = fmt.Errorf("failed to parse response: %w", err)
			continue
		}
		if len(gr.Candidates) == 0 {
			lastErr = fmt.Errorf("no candidates in response")
			continue
		}
		// find first text part
		for _, p := range gr.Candidates[0].Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
		lastErr = fmt.Errorf("no text part in response")
	}
	return "", lastErr
}
