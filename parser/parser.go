package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// ExtractionResult represents the structured fields an LLM extracted from a
// document image.
type ExtractionResult struct {
	StudentName    string `json:"student_name"`
	UniversityName string `json:"university_name"`
	DegreeName     string `json:"degree_name"`
	DateOfIssue    string `json:"date_of_issue"`
	ExtractedText  string `json:"extracted_text"`
}

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks
func ExtractJSONFromMarkdown(response string) string {
	// Look for JSON code blocks with ``` markers
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	// Extract content between the markers
	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseExtraction parses an LLM response and extracts the document fields.
// The model may wrap the JSON in markdown fences or surrounding prose; only
// the JSON object is considered.
func ParseExtraction(response string) (*ExtractionResult, error) {
	// Clean the response
	cleaned := strings.TrimSpace(response)

	// Extract JSON from markdown if present
	jsonContent := ExtractJSONFromMarkdown(cleaned)

	var result ExtractionResult
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}

	// Models sometimes emit the literal word "null" for absent fields.
	result.StudentName = dropNullWord(result.StudentName)
	result.UniversityName = dropNullWord(result.UniversityName)
	result.DegreeName = dropNullWord(result.DegreeName)
	result.DateOfIssue = dropNullWord(result.DateOfIssue)

	if result.StudentName == "" && result.UniversityName == "" &&
		result.DegreeName == "" && result.ExtractedText == "" {
		return nil, errors.New("extraction returned no usable fields")
	}

	return &result, nil
}

func dropNullWord(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "n/a", "not available", "none":
		return ""
	}
	return s
}
