package matcher

import (
	"context"
	"regexp"
	"strings"

	"doc-verify-pipeline/models"
	"doc-verify-pipeline/services"

	"github.com/apex/log"
)

// MasterStore abstracts the master record lookup. A nil master with a nil
// error means no record matched.
type MasterStore interface {
	FindMasterDocument(ctx context.Context, criteria models.MatchCriteria) (*models.MasterDocument, error)
}

// Matcher looks up master records using identity fields extracted from the
// uploaded document.
type Matcher struct {
	store        MasterStore
	institutions *services.InstitutionService
}

// NewMatcher creates a matcher backed by the given store.
func NewMatcher(store MasterStore) *Matcher {
	return &Matcher{
		store:        store,
		institutions: services.NewInstitutionService(),
	}
}

// A name is one to four consecutive capitalized words on one line. Stopping
// at the first lowercase word keeps "Jane Doe has been awarded" from
// swallowing the rest of the sentence.
const nameCapture = `((?:[A-Z][A-Za-z.'-]*)(?:[ \t]+[A-Z][A-Za-z.'-]*){0,3})`

// Candidate-name patterns covering common credential phrasings. The first
// pattern that matches wins. This is best-effort by design: unusual phrasing
// produces a false negative, not an error.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:this (?:is to )?certif(?:ies|y) that)\s+` + nameCapture),
	regexp.MustCompile(`(?i:is (?:hereby )?awarded to)\s+` + nameCapture),
	regexp.MustCompile(`(?i:\bname)\s*:\s*` + nameCapture),
}

// ExtractCandidateName pulls a likely subject name out of OCR text.
// Returns "" when no pattern matches.
func ExtractCandidateName(ocrText string) string {
	for _, pattern := range namePatterns {
		if m := pattern.FindStringSubmatch(ocrText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// FindMaster queries the store for a master record matching the criteria.
// A store outage degrades to "no match" with Degraded set; it never returns
// an error to the caller.
func (m *Matcher) FindMaster(ctx context.Context, criteria models.MatchCriteria) models.MatchResult {
	criteria = m.normalize(criteria)

	// Querying with no criteria would scan the whole collection.
	if criteria.Empty() {
		return models.MatchResult{Found: false, Reason: "no identity fields extracted"}
	}

	master, err := m.store.FindMasterDocument(ctx, criteria)
	if err != nil {
		log.Errorf("Master lookup failed, degrading to no-match: %v", err)
		return models.MatchResult{
			Found:    false,
			Degraded: true,
			Reason:   "record store unreachable",
		}
	}

	if master == nil {
		return models.MatchResult{Found: false}
	}

	return models.MatchResult{Found: true, Master: master}
}

func (m *Matcher) normalize(criteria models.MatchCriteria) models.MatchCriteria {
	criteria.StudentName = m.institutions.NormalizeName(criteria.StudentName)
	criteria.UniversityName = m.institutions.CanonicalInstitution(criteria.UniversityName)
	criteria.DegreeName = m.institutions.NormalizeName(criteria.DegreeName)
	return criteria
}
