package llm

// Extractor abstracts a multimodal LLM provider used to pull structured
// identity fields out of a document image.
// Implementations must be concurrency-safe if used across goroutines.
type Extractor interface {
	// ExtractFields takes raw image bytes and returns a single JSON string
	// per the extraction schema (student_name, university_name, degree_name,
	// date_of_issue, extracted_text).
	ExtractFields(imageData []byte) (string, error)
	// SourceName returns a short provider label for logging (e.g., "Gemini").
	SourceName() string
}
