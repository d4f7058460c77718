package service

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doc-verify-pipeline/config"
	"doc-verify-pipeline/engine"
	"doc-verify-pipeline/models"
)

type fakeRunner struct {
	bundle *models.AnalysisBundle
	err    error

	// imagePath observed by the last Run call.
	imagePath string
	// existedDuringRun records whether the transient file was on disk
	// while the engine ran.
	existedDuringRun bool
}

func (f *fakeRunner) Run(ctx context.Context, imagePath string) (*models.AnalysisBundle, error) {
	f.imagePath = imagePath
	if _, err := os.Stat(imagePath); err == nil {
		f.existedDuringRun = true
	}
	return f.bundle, f.err
}

func genuineBundle() *models.AnalysisBundle {
	return &models.AnalysisBundle{
		Stages: map[models.StageKind]models.StageResult{
			models.StageELA:       {Kind: models.StageELA, Score: 10},
			models.StageOCR:       {Kind: models.StageOCR, Score: 85, Text: "This certifies that Jane Doe"},
			models.StageQR:        {Kind: models.StageQR, Score: 100, Detected: true},
			models.StageWatermark: {Kind: models.StageWatermark, Score: 80},
			models.StageLayout:    {Kind: models.StageLayout, Score: 75},
			models.StageML:        {Kind: models.StageML, Label: "GENUINE", Confidence: 90},
		},
	}
}

func newTestService(t *testing.T, runner AnalysisRunner) *Service {
	t.Helper()
	return &Service{
		config: &config.Config{TmpDir: t.TempDir()},
		engine: runner,
	}
}

func validDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
}

func TestVerifySuccess(t *testing.T) {
	runner := &fakeRunner{bundle: genuineBundle()}
	s := newTestService(t, runner)

	report, err := s.Verify(context.Background(), validDataURI())
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}

	if !report.IsAuthentic {
		t.Errorf("IsAuthentic = false, want true")
	}
	if report.Verdict != models.VerdictGenuine {
		t.Errorf("Verdict = %q, want GENUINE", report.Verdict)
	}
	if report.ID == "" {
		t.Error("report ID is empty")
	}
	if report.ExtractedText != "This certifies that Jane Doe" {
		t.Errorf("ExtractedText = %q", report.ExtractedText)
	}
	if len(report.StageScores) != 6 {
		t.Errorf("len(StageScores) = %d, want 6", len(report.StageScores))
	}
	if !strings.Contains(report.Details, "Overall Score:") {
		t.Errorf("Details missing score line: %q", report.Details)
	}
	if report.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestVerifyTransientFileLifecycle(t *testing.T) {
	runner := &fakeRunner{bundle: genuineBundle()}
	s := newTestService(t, runner)

	if _, err := s.Verify(context.Background(), validDataURI()); err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}

	if !runner.existedDuringRun {
		t.Error("transient image did not exist while the engine ran")
	}
	if _, err := os.Stat(runner.imagePath); !os.IsNotExist(err) {
		t.Errorf("transient image %s still exists after success", runner.imagePath)
	}
	if got := filepath.Ext(runner.imagePath); got != ".png" {
		t.Errorf("image extension = %q, want .png", got)
	}
}

func TestVerifyCleanupOnEngineFailure(t *testing.T) {
	runner := &fakeRunner{err: &engine.ExecutionError{ExitCode: 3, Stderr: "boom"}}
	s := newTestService(t, runner)

	_, err := s.Verify(context.Background(), validDataURI())
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("Verify() error = %v, want ErrAnalysisFailed", err)
	}

	if _, statErr := os.Stat(runner.imagePath); !os.IsNotExist(statErr) {
		t.Errorf("transient image %s still exists after failure", runner.imagePath)
	}
}

func TestVerifyEngineUnavailable(t *testing.T) {
	runner := &fakeRunner{err: &engine.UnavailableError{Err: errors.New("no such file")}}
	s := newTestService(t, runner)

	_, err := s.Verify(context.Background(), validDataURI())
	if !errors.Is(err, ErrAnalysisUnavailable) {
		t.Errorf("Verify() error = %v, want ErrAnalysisUnavailable", err)
	}
}

func TestVerifyMalformedOutput(t *testing.T) {
	runner := &fakeRunner{err: &engine.MalformedOutputError{Output: "INFO no JSON here"}}
	s := newTestService(t, runner)

	_, err := s.Verify(context.Background(), validDataURI())
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Errorf("Verify() error = %v, want ErrAnalysisFailed", err)
	}
}

func TestVerifyInvalidPayload(t *testing.T) {
	runner := &fakeRunner{bundle: genuineBundle()}
	s := newTestService(t, runner)

	tests := []struct {
		name    string
		payload string
	}{
		{"no data prefix", "image/png;base64,aGVsbG8="},
		{"no comma", "data:image/png;base64aGVsbG8="},
		{"not base64 marked", "data:image/png,aGVsbG8="},
		{"bad base64", "data:image/png;base64,!!!not-base64!!!"},
		{"empty payload", "data:image/png;base64,"},
		{"non-image media type", "data:application/pdf;base64,aGVsbG8="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(context.Background(), tt.payload)
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("Verify(%q) error = %v, want ErrInvalidPayload", tt.payload, err)
			}
			if runner.imagePath != "" {
				t.Error("engine ran on an invalid payload")
			}
		})
	}
}

func TestVerifyJPEGExtension(t *testing.T) {
	runner := &fakeRunner{bundle: genuineBundle()}
	s := newTestService(t, runner)

	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg bytes"))
	if _, err := s.Verify(context.Background(), payload); err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	if got := filepath.Ext(runner.imagePath); got != ".jpg" {
		t.Errorf("image extension = %q, want .jpg", got)
	}
}

func TestVerifyWithoutDatabase(t *testing.T) {
	// No db, no matcher: matching is reported as disabled, not as an error.
	runner := &fakeRunner{bundle: genuineBundle()}
	s := newTestService(t, runner)

	report, err := s.Verify(context.Background(), validDataURI())
	if err != nil {
		t.Fatalf("Verify() unexpected error: %v", err)
	}
	if report.MatchFound {
		t.Error("MatchFound = true without a record store")
	}
	if report.LookupDegraded {
		t.Error("LookupDegraded = true without a record store")
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, ext, err := decodeDataURI("data:image/webp;base64," + base64.StdEncoding.EncodeToString([]byte("webp")))
	if err != nil {
		t.Fatalf("decodeDataURI() unexpected error: %v", err)
	}
	if string(data) != "webp" {
		t.Errorf("decoded data = %q, want webp", data)
	}
	if ext != ".webp" {
		t.Errorf("ext = %q, want .webp", ext)
	}
}

func TestBuildDetailsMissingStage(t *testing.T) {
	bundle := &models.AnalysisBundle{
		Stages: map[models.StageKind]models.StageResult{
			models.StageELA: {Kind: models.StageELA, Score: 20},
		},
	}
	report := &models.VerificationReport{
		OverallScore: 65,
		Verdict:      models.VerdictLikelyGenuine,
		Confidence:   25,
		StageScores:  map[models.StageKind]float64{models.StageELA: 80},
	}

	details := buildDetails(report, bundle)
	if !strings.Contains(details, "OCR: not available") {
		t.Errorf("Details missing not-available marker:\n%s", details)
	}
	if !strings.Contains(details, "ELA: 80.00") {
		t.Errorf("Details missing ELA score:\n%s", details)
	}
}
