package services

import (
	"strings"
	"unicode"
)

// InstitutionService manages institution name normalization so that OCR and
// LLM variants of the same university name match the stored master records.
type InstitutionService struct{}

// NewInstitutionService creates a new institution service
func NewInstitutionService() *InstitutionService {
	return &InstitutionService{}
}

// NormalizeName normalizes a person or institution name for matching:
// trims, collapses internal whitespace and title-cases each word. OCR tends
// to produce stray spacing and inconsistent casing; stored masters are
// written by humans.
func (s *InstitutionService) NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	// Collapse runs of whitespace (OCR artifacts) to single spaces.
	normalized := strings.Join(strings.Fields(name), " ")
	normalized = strings.Trim(normalized, ".,;:")

	return s.toTitleCase(normalized)
}

// CanonicalInstitution returns the canonical form for well-known institution
// aliases, falling back to the normalized name.
func (s *InstitutionService) CanonicalInstitution(name string) string {
	normalized := s.NormalizeName(name)
	if normalized == "" {
		return ""
	}

	switch strings.ToLower(normalized) {
	case "du", "delhi university":
		return "University of Delhi"
	case "mu", "mumbai university":
		return "University of Mumbai"
	case "iit delhi":
		return "Indian Institute of Technology Delhi"
	case "iit bombay":
		return "Indian Institute of Technology Bombay"
	case "anna univ":
		return "Anna University"
	}

	return normalized
}

// toTitleCase converts a string to title case, keeping common name
// connectives lowercase.
func (s *InstitutionService) toTitleCase(str string) string {
	if str == "" {
		return str
	}

	words := strings.Split(str, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		lower := strings.ToLower(w)
		if i > 0 && (lower == "of" || lower == "and" || lower == "the" || lower == "for") {
			words[i] = lower
			continue
		}
		runes := []rune(lower)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}

	return strings.Join(words, " ")
}
