package verdict

import (
	"math"

	"doc-verify-pipeline/models"
)

// Stage weights used to combine per-stage scores into the overall score.
// They sum to 1.0.
var Weights = map[models.StageKind]float64{
	models.StageELA:       0.15,
	models.StageOCR:       0.10,
	models.StageQR:        0.10,
	models.StageWatermark: 0.20,
	models.StageLayout:    0.15,
	models.StageML:        0.30,
}

// Verdict thresholds on the overall score.
const (
	genuineThreshold       = 80.0
	likelyGenuineThreshold = 60.0
	suspiciousThreshold    = 35.0
)

// Substituted for the QR stage when it produced no detection: absence of a
// code is genuine uncertainty, not evidence either way.
const qrNeutralMidpoint = 50.0

// Outcome represents the combined scoring result for one analysis bundle.
type Outcome struct {
	OverallScore float64
	Verdict      string
	IsAuthentic  bool

	// Confidence reflects how much stage evidence was actually available,
	// independent of the score itself.
	Confidence float64

	// StageScores holds the effective per-stage scores after inversion,
	// folding and substitution, for the human-readable breakdown.
	StageScores map[models.StageKind]float64
}

// Score combines the per-stage results of a bundle into an overall
// authenticity score, a verdict label and a confidence measure.
//
// Rules:
//   - the ela score is inverted (100 - raw) since for that stage a higher
//     raw value means more suspicion;
//   - a classifier label folds with its confidence: GENUINE keeps the
//     confidence, FAKE maps to 100 - confidence;
//   - a missing qr stage is substituted with the neutral midpoint 50;
//   - any other missing stage is excluded and the weighted sum is
//     renormalized over the weights that are present;
//   - out-of-range scores are clamped, never rejected.
//
// Score is a pure function: no state, identical output for identical input.
func Score(bundle *models.AnalysisBundle) Outcome {
	effective := make(map[models.StageKind]float64, len(models.AllStageKinds))
	presentWeight := 0.0

	for _, kind := range models.AllStageKinds {
		stage, ok := stageFor(bundle, kind)
		if !ok {
			if kind == models.StageQR {
				effective[kind] = qrNeutralMidpoint
			}
			continue
		}
		effective[kind] = effectiveScore(kind, stage)
		presentWeight += Weights[kind]
	}

	weightSum := 0.0
	total := 0.0
	for kind, score := range effective {
		w := Weights[kind]
		weightSum += w
		total += w * score
	}

	// The qr substitution guarantees weightSum is never zero.
	overall := clamp(total / weightSum)
	label := labelFor(overall)

	return Outcome{
		OverallScore: overall,
		Verdict:      label,
		IsAuthentic:  label == models.VerdictGenuine || label == models.VerdictLikelyGenuine,
		Confidence:   round2(100 * presentWeight),
		StageScores:  effective,
	}
}

// FoldClassifier maps a categorical classifier result to a single score:
// a confidently GENUINE label scores high, a confidently FAKE label low.
func FoldClassifier(label string, confidence float64) float64 {
	confidence = clamp(confidence)
	if label == models.VerdictFake {
		return 100 - confidence
	}
	return confidence
}

func stageFor(bundle *models.AnalysisBundle, kind models.StageKind) (models.StageResult, bool) {
	if bundle == nil || bundle.Stages == nil {
		return models.StageResult{}, false
	}
	s, ok := bundle.Stages[kind]
	return s, ok
}

func effectiveScore(kind models.StageKind, stage models.StageResult) float64 {
	switch kind {
	case models.StageELA:
		return 100 - clamp(stage.Score)
	case models.StageML:
		if stage.Label != "" {
			return FoldClassifier(stage.Label, stage.Confidence)
		}
		return clamp(stage.Score)
	default:
		return clamp(stage.Score)
	}
}

func labelFor(overall float64) string {
	switch {
	case overall >= genuineThreshold:
		return models.VerdictGenuine
	case overall >= likelyGenuineThreshold:
		return models.VerdictLikelyGenuine
	case overall >= suspiciousThreshold:
		return models.VerdictSuspicious
	default:
		return models.VerdictFake
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
