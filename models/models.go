package models

import (
	"time"
)

// StageKind identifies one independent analysis check run by the engine.
type StageKind string

const (
	StageELA       StageKind = "ela"
	StageOCR       StageKind = "ocr"
	StageQR        StageKind = "qr"
	StageWatermark StageKind = "watermark"
	StageLayout    StageKind = "layout"
	StageML        StageKind = "ml"
)

// AllStageKinds lists every stage the engine can produce, in report order.
var AllStageKinds = []StageKind{
	StageELA, StageOCR, StageQR, StageWatermark, StageLayout, StageML,
}

// DetectedCode represents a single QR/barcode found on the document.
type DetectedCode struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// StageResult represents the output of one analysis stage.
// Score semantics vary by kind: for ela a higher score means more suspicious,
// for every other stage a higher score means more authentic.
type StageResult struct {
	Kind  StageKind `json:"kind"`
	Score float64   `json:"score"`

	// OCR payload
	Text string `json:"text,omitempty"`

	// QR payload
	Detected bool           `json:"detected,omitempty"`
	Codes    []DetectedCode `json:"codes,omitempty"`

	// Classifier payload. When Label is set it takes precedence over Score
	// and is folded with Confidence into a combined score.
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// AnalysisBundle represents the full set of stage results for one document.
// A stage absent from the map is considered missing, never zero.
type AnalysisBundle struct {
	Stages map[StageKind]StageResult `json:"stages"`
}

// OCRText returns the text extracted by the OCR stage, or "" if the stage
// is missing or extracted nothing.
func (b *AnalysisBundle) OCRText() string {
	if b == nil {
		return ""
	}
	if s, ok := b.Stages[StageOCR]; ok {
		return s.Text
	}
	return ""
}

// QRCodes returns the codes detected by the QR stage, if any.
func (b *AnalysisBundle) QRCodes() []DetectedCode {
	if b == nil {
		return nil
	}
	if s, ok := b.Stages[StageQR]; ok && s.Detected {
		return s.Codes
	}
	return nil
}

// VerificationReport represents the terminal artifact of one verification.
type VerificationReport struct {
	ID            string                `json:"id"`
	IsAuthentic   bool                  `json:"is_authentic"`
	OverallScore  float64               `json:"overall_score"`
	Verdict       string                `json:"verdict"`
	Confidence    float64               `json:"confidence"`
	ExtractedText string                `json:"extracted_text"`
	StageScores   map[StageKind]float64 `json:"stage_scores"`
	Details       string                `json:"details"`

	MatchFound            bool   `json:"match_found"`
	MatchedMasterID       string `json:"matched_master_id,omitempty"`
	MatchedMasterImageURI string `json:"matched_master_image_uri,omitempty"`
	LookupDegraded        bool   `json:"lookup_degraded,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Verdict labels, monotonic in the overall score.
const (
	VerdictGenuine       = "GENUINE"
	VerdictLikelyGenuine = "LIKELY_GENUINE"
	VerdictSuspicious    = "SUSPICIOUS"
	VerdictFake          = "FAKE"
)

// MasterDocument represents an institution-issued reference document.
// Immutable once stored; looked up read-only during verification.
type MasterDocument struct {
	ID             string    `json:"id"`
	StudentName    string    `json:"student_name"`
	UniversityName string    `json:"university_name"`
	DegreeName     string    `json:"degree_name"`
	DateOfIssue    string    `json:"date_of_issue"`
	ImageURI       string    `json:"image_uri,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MatchCriteria represents the identity fields used to look up a master.
type MatchCriteria struct {
	StudentName    string `json:"student_name,omitempty"`
	UniversityName string `json:"university_name,omitempty"`
	DegreeName     string `json:"degree_name,omitempty"`
}

// Empty reports whether no criterion is set.
func (c MatchCriteria) Empty() bool {
	return c.StudentName == "" && c.UniversityName == "" && c.DegreeName == ""
}

// MatchResult represents the outcome of a master record lookup.
type MatchResult struct {
	Found  bool            `json:"found"`
	Master *MasterDocument `json:"master,omitempty"`

	// Degraded is set when the store was unreachable. The lookup then
	// counts as "no match" rather than aborting the verification.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}
