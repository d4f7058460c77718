package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"doc-verify-pipeline/models"

	"github.com/apex/log"
)

// Runner invokes the out-of-process forgery detection engine on an image and
// normalizes its output into an AnalysisBundle.
type Runner struct {
	python  string
	script  string
	workDir string
	timeout time.Duration
}

// NewRunner creates a runner for the given python interpreter and engine
// script. workDir is the directory the engine expects to run from (its model
// weights and output dirs are relative paths).
func NewRunner(python, script, workDir string, timeout time.Duration) *Runner {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Runner{
		python:  python,
		script:  script,
		workDir: workDir,
		timeout: timeout,
	}
}

// Run executes the engine against the image at imagePath. The engine prints
// one JSON object on stdout, possibly surrounded by diagnostic text; stderr
// noise alone is never treated as a failure.
func (r *Runner) Run(ctx context.Context, imagePath string) (*models.AnalysisBundle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.python, r.script, imagePath)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, &UnavailableError{Err: err}
	}

	err := cmd.Wait()
	if stderr.Len() > 0 {
		log.Debugf("engine stderr: %s", strings.TrimSpace(stderr.String()))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, &ExecutionError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(stderr.String()),
				Err:      err,
			}
		}
		return nil, &UnavailableError{Err: err}
	}

	return ParseOutput(stdout.Bytes())
}

// engineOutput mirrors the engine's stdout contract.
type engineOutput struct {
	Error        string             `json:"error"`
	FinalVerdict *engineVerdict     `json:"final_verdict"`
	StageResults *engineStageDetail `json:"stage_results"`
}

type engineVerdict struct {
	Verdict      string              `json:"verdict"`
	Confidence   float64             `json:"confidence"`
	OverallScore float64             `json:"overall_score"`
	StageScores  map[string]*float64 `json:"stage_scores"`
}

type engineStageDetail struct {
	OCR *struct {
		Text string `json:"text"`
	} `json:"ocr"`
	QR *struct {
		Detected bool                  `json:"detected"`
		Codes    []models.DetectedCode `json:"codes"`
	} `json:"qr"`
	ML *struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"ml"`
}

// ParseOutput locates the JSON object within the engine's raw stdout and
// validates it against the expected contract.
func ParseOutput(raw []byte) (*models.AnalysisBundle, error) {
	payload, ok := outermostJSON(raw)
	if !ok {
		return nil, &MalformedOutputError{Output: excerpt(raw)}
	}

	var out engineOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &MalformedOutputError{Output: excerpt(raw)}
	}

	if out.Error != "" {
		return nil, &ExecutionError{Err: fmt.Errorf("engine reported: %s", out.Error)}
	}

	if out.FinalVerdict == nil || out.FinalVerdict.StageScores == nil {
		return nil, &MalformedOutputError{Output: excerpt(raw)}
	}

	bundle := &models.AnalysisBundle{Stages: map[models.StageKind]models.StageResult{}}
	for _, kind := range models.AllStageKinds {
		score, present := out.FinalVerdict.StageScores[string(kind)]
		if !present || score == nil {
			continue
		}
		bundle.Stages[kind] = models.StageResult{Kind: kind, Score: *score}
	}

	if out.StageResults != nil {
		// Text attaches only to a scored ocr stage; detail alone does not
		// conjure a stage with a zero score.
		if ocr := out.StageResults.OCR; ocr != nil {
			if stage, present := bundle.Stages[models.StageOCR]; present {
				stage.Text = ocr.Text
				bundle.Stages[models.StageOCR] = stage
			}
		}
		if qr := out.StageResults.QR; qr != nil {
			stage, present := bundle.Stages[models.StageQR]
			// Detail without a score only counts when a code was found;
			// a detection with no explicit score is a full pass.
			if present || qr.Detected {
				stage.Kind = models.StageQR
				stage.Detected = qr.Detected
				stage.Codes = qr.Codes
				if !present {
					stage.Score = 100
				}
				bundle.Stages[models.StageQR] = stage
			}
		}
		if ml := out.StageResults.ML; ml != nil && ml.Label != "" {
			stage := bundle.Stages[models.StageML]
			stage.Kind = models.StageML
			stage.Label = ml.Label
			stage.Confidence = ml.Confidence
			bundle.Stages[models.StageML] = stage
		}
	}

	if len(bundle.Stages) == 0 {
		return nil, &MalformedOutputError{Output: excerpt(raw)}
	}

	return bundle, nil
}

// outermostJSON returns the slice from the first '{' to the last '}' in raw.
// The engine prints progress lines around its JSON payload, so the whole
// output cannot be assumed to be JSON.
func outermostJSON(raw []byte) ([]byte, bool) {
	start := bytes.IndexByte(raw, '{')
	end := bytes.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return nil, false
	}
	return raw[start : end+1], true
}

func excerpt(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 500 {
		s = s[:500] + "..."
	}
	return s
}
