package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-verify-pipeline/models"
)

const validOutput = `{
	"final_verdict": {
		"verdict": "GENUINE",
		"confidence": 92.0,
		"overall_score": 84.3,
		"stage_scores": {
			"ela": 12.5, "ocr": 88.0, "qr": 100.0,
			"watermark": 75.0, "layout": 81.0, "ml": 90.0
		}
	},
	"stage_results": {
		"ocr": { "text": "This certifies that Jane Doe" },
		"qr": { "detected": true, "codes": [{ "type": "QRCODE", "data": "CERT-1234" }] },
		"ml": { "label": "GENUINE", "confidence": 90.0 }
	}
}`

func TestParseOutputValid(t *testing.T) {
	bundle, err := ParseOutput([]byte(validOutput))
	if err != nil {
		t.Fatalf("ParseOutput() unexpected error: %v", err)
	}

	if len(bundle.Stages) != 6 {
		t.Errorf("got %d stages, want 6", len(bundle.Stages))
	}

	if got := bundle.OCRText(); got != "This certifies that Jane Doe" {
		t.Errorf("OCRText() = %q", got)
	}

	qr := bundle.Stages[models.StageQR]
	if !qr.Detected || len(qr.Codes) != 1 || qr.Codes[0].Data != "CERT-1234" {
		t.Errorf("qr stage = %+v", qr)
	}

	ml := bundle.Stages[models.StageML]
	if ml.Label != "GENUINE" || ml.Confidence != 90.0 {
		t.Errorf("ml stage = %+v", ml)
	}

	if ela := bundle.Stages[models.StageELA]; ela.Score != 12.5 {
		t.Errorf("ela score = %v, want 12.5", ela.Score)
	}
}

func TestParseOutputNoisySurroundings(t *testing.T) {
	noisy := "Loading classifier weights...\nWARNING: CUDA not available\n" +
		validOutput + "\nDone in 3.2s\n"

	bundle, err := ParseOutput([]byte(noisy))
	if err != nil {
		t.Fatalf("ParseOutput() unexpected error: %v", err)
	}
	if len(bundle.Stages) != 6 {
		t.Errorf("got %d stages, want 6", len(bundle.Stages))
	}
}

func TestParseOutputMissingStageExcluded(t *testing.T) {
	partial := `{
		"final_verdict": {
			"verdict": "SUSPICIOUS",
			"confidence": 60.0,
			"overall_score": 48.0,
			"stage_scores": { "ela": 40.0, "ocr": 55.0, "qr": null,
				"watermark": 50.0, "layout": 45.0, "ml": 50.0 }
		},
		"stage_results": { "ocr": { "text": "" }, "qr": { "detected": false, "codes": [] } }
	}`

	bundle, err := ParseOutput([]byte(partial))
	if err != nil {
		t.Fatalf("ParseOutput() unexpected error: %v", err)
	}
	if _, ok := bundle.Stages[models.StageQR]; ok {
		t.Errorf("null qr score with no detection must leave the stage missing")
	}
}

func TestParseOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "no JSON at all",
			raw:  "Traceback (most recent call last):\n  something broke\n",
			want: &MalformedOutputError{},
		},
		{
			name: "explicit error field",
			raw:  `{"error": "No upload_*.png file found to process."}`,
			want: &ExecutionError{},
		},
		{
			name: "JSON but missing final_verdict",
			raw:  `{"stage_results": {"ocr": {"text": "hi"}}}`,
			want: &MalformedOutputError{},
		},
		{
			name: "unbalanced braces",
			raw:  `progress: 42% } nothing here {`,
			want: &MalformedOutputError{},
		},
		{
			name: "empty stage scores",
			raw:  `{"final_verdict": {"verdict": "FAKE", "confidence": 0, "overall_score": 0, "stage_scores": {}}}`,
			want: &MalformedOutputError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOutput([]byte(tt.raw))
			if err == nil {
				t.Fatalf("ParseOutput() expected error")
			}
			switch tt.want.(type) {
			case *MalformedOutputError:
				var target *MalformedOutputError
				if !errors.As(err, &target) {
					t.Errorf("got %T, want MalformedOutputError", err)
				}
			case *ExecutionError:
				var target *ExecutionError
				if !errors.As(err, &target) {
					t.Errorf("got %T, want ExecutionError", err)
				}
			}
		})
	}
}

func TestRunUnavailableBinary(t *testing.T) {
	r := NewRunner("definitely-not-a-real-python-binary", "app.py", "", time.Second)

	_, err := r.Run(context.Background(), "/tmp/nothing.png")
	if err == nil {
		t.Fatalf("Run() expected error for missing binary")
	}
	var target *UnavailableError
	if !errors.As(err, &target) {
		t.Errorf("got %T (%v), want UnavailableError", err, err)
	}
}
