package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doc-verify-pipeline/config"
	"doc-verify-pipeline/database"
	"doc-verify-pipeline/engine"
	"doc-verify-pipeline/gemini"
	"doc-verify-pipeline/llm"
	"doc-verify-pipeline/matcher"
	"doc-verify-pipeline/metrics"
	"doc-verify-pipeline/models"
	"doc-verify-pipeline/openai"
	"doc-verify-pipeline/parser"
	"doc-verify-pipeline/rabbitmq"
	"doc-verify-pipeline/stubllm"
	"doc-verify-pipeline/verdict"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Pipeline-level error categories. Handlers map each one to a distinct
// HTTP status and message.
var (
	// ErrInvalidPayload means the document payload was not a valid
	// base64 data URI. Rejected before any resource is created.
	ErrInvalidPayload = errors.New("invalid document payload")

	// ErrStorage means the transient image could not be persisted.
	ErrStorage = errors.New("transient storage failure")

	// ErrAnalysisUnavailable means the engine process could not start.
	ErrAnalysisUnavailable = errors.New("analysis engine unavailable")

	// ErrAnalysisFailed means the engine ran but returned an error or
	// unparseable output. A verdict with zero evidence is meaningless,
	// so this fails the verification rather than scoring an empty bundle.
	ErrAnalysisFailed = errors.New("analysis engine failed")
)

// AnalysisRunner abstracts the external engine invocation.
type AnalysisRunner interface {
	Run(ctx context.Context, imagePath string) (*models.AnalysisBundle, error)
}

// Service represents the document verification service
type Service struct {
	config    *config.Config
	db        *database.Database
	engine    AnalysisRunner
	matcher   *matcher.Matcher
	extractor llm.Extractor
	publisher *rabbitmq.Publisher
}

// NewService creates a new verification service wired from configuration.
// db may be nil (no master matching, no history); the publisher is optional.
func NewService(cfg *config.Config, db *database.Database) *Service {
	s := &Service{
		config: cfg,
		db:     db,
		engine: engine.NewRunner(cfg.EnginePython, cfg.EngineScript, cfg.EngineWorkDir, cfg.EngineTimeout),
	}

	if db != nil {
		s.matcher = matcher.NewMatcher(db)
	}

	switch cfg.LLMProvider {
	case "gemini":
		s.extractor = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	case "openai":
		s.extractor = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "stub":
		s.extractor = stubllm.NewClient()
	}
	if s.extractor != nil {
		log.Infof("Field extraction provider=%s", s.extractor.SourceName())
	}

	if cfg.AMQPURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
			// Continue without publisher - verification still works
		} else {
			s.publisher = publisher
		}
	}

	return s
}

// Start prepares the backing tables.
func (s *Service) Start() error {
	if s.db == nil {
		log.Warn("No database configured; master matching and history are disabled")
		return nil
	}
	return s.db.CreateTables()
}

// Stop releases long-lived resources.
func (s *Service) Stop() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Errorf("Failed to close RabbitMQ publisher: %v", err)
		}
	}
}

// Verify runs the full verification pipeline on a base64 data-URI document
// image and returns the completed report. Fatal errors wrap one of the
// package-level categories; no partial report is ever returned.
func (s *Service) Verify(ctx context.Context, documentDataURI string) (*models.VerificationReport, error) {
	start := time.Now()
	metrics.VerificationsInFlight.Inc()
	defer metrics.VerificationsInFlight.Dec()

	report, err := s.verify(ctx, documentDataURI)

	result := "ok"
	if err != nil {
		result = resultLabel(err)
	}
	metrics.VerificationsTotal.WithLabelValues(result).Inc()
	metrics.VerificationDurationSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	if report != nil {
		metrics.VerdictsTotal.WithLabelValues(report.Verdict).Inc()
	}

	return report, err
}

func (s *Service) verify(ctx context.Context, documentDataURI string) (*models.VerificationReport, error) {
	imageData, ext, err := decodeDataURI(documentDataURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	// Persist to a per-request transient path. The engine takes a file
	// path, not bytes, so the image must hit stable storage first.
	imagePath := filepath.Join(s.config.TmpDir, "upload_"+uuid.NewString()+ext)
	if err := os.MkdirAll(s.config.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.WriteFile(imagePath, imageData, 0o600); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	// Release on every exit path, including upstream cancellation.
	defer func() {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			log.Errorf("Failed to remove transient image %s: %v", imagePath, err)
		}
	}()

	bundle, err := s.engine.Run(ctx, imagePath)
	if err != nil {
		return nil, mapEngineError(err)
	}

	outcome := verdict.Score(bundle)
	ocrText := bundle.OCRText()

	match := s.findMaster(ctx, imageData, ocrText)

	report := &models.VerificationReport{
		ID:             uuid.NewString(),
		IsAuthentic:    outcome.IsAuthentic,
		OverallScore:   outcome.OverallScore,
		Verdict:        outcome.Verdict,
		Confidence:     outcome.Confidence,
		ExtractedText:  ocrText,
		StageScores:    outcome.StageScores,
		MatchFound:     match.Found,
		LookupDegraded: match.Degraded,
		CreatedAt:      time.Now().UTC(),
	}
	if match.Found && match.Master != nil {
		report.MatchedMasterID = match.Master.ID
		if uri, err := s.db.GetMasterImageURI(ctx, match.Master.ID); err != nil {
			log.Errorf("Failed to fetch master image for %s: %v", match.Master.ID, err)
		} else {
			report.MatchedMasterImageURI = uri
		}
	}
	report.Details = buildDetails(report, bundle)

	s.persistAndPublish(ctx, report)

	return report, nil
}

// findMaster extracts identity fields and looks up a master record.
// Matching never fails the pipeline.
func (s *Service) findMaster(ctx context.Context, imageData []byte, ocrText string) models.MatchResult {
	if s.matcher == nil {
		return models.MatchResult{Found: false, Reason: "matching disabled"}
	}

	criteria := models.MatchCriteria{
		StudentName: matcher.ExtractCandidateName(ocrText),
	}

	if s.extractor != nil {
		response, err := s.extractor.ExtractFields(imageData)
		if err != nil {
			log.Errorf("Field extraction failed, falling back to pattern matching: %v", err)
		} else if extracted, err := parser.ParseExtraction(response); err != nil {
			log.Errorf("Unparseable extraction response, falling back to pattern matching: %v", err)
		} else {
			if criteria.StudentName == "" {
				criteria.StudentName = extracted.StudentName
			}
			criteria.UniversityName = extracted.UniversityName
			criteria.DegreeName = extracted.DegreeName
		}
	}

	match := s.matcher.FindMaster(ctx, criteria)
	if match.Degraded {
		metrics.LookupDegradedTotal.Inc()
	}
	return match
}

// persistAndPublish records the completed report. Both steps are
// best-effort: a history or broker outage never fails the verification.
func (s *Service) persistAndPublish(ctx context.Context, report *models.VerificationReport) {
	if s.db != nil {
		if err := s.db.SaveVerification(ctx, report); err != nil {
			log.Errorf("Failed to save verification %s: %v", report.ID, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(report); err != nil {
			log.Errorf("Failed to publish verification %s: %v", report.ID, err)
		}
	}
}

func mapEngineError(err error) error {
	var unavailable *engine.UnavailableError
	if errors.As(err, &unavailable) {
		metrics.EngineFailuresTotal.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	var malformed *engine.MalformedOutputError
	if errors.As(err, &malformed) {
		metrics.EngineFailuresTotal.WithLabelValues("malformed_output").Inc()
		return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	metrics.EngineFailuresTotal.WithLabelValues("execution").Inc()
	return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	case errors.Is(err, ErrAnalysisUnavailable):
		return "engine_unavailable"
	case errors.Is(err, ErrAnalysisFailed):
		return "engine_failed"
	default:
		return "error"
	}
}

// decodeDataURI validates and decodes a "data:<mime>;base64,<data>" payload,
// returning the raw bytes and a file extension for the transient path.
func decodeDataURI(dataURI string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, "", errors.New("missing data URI prefix")
	}

	header, encoded, found := strings.Cut(dataURI[len("data:"):], ",")
	if !found {
		return nil, "", errors.New("malformed data URI: no comma separator")
	}

	mimeType, _, _ := strings.Cut(header, ";")
	if !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.New("data URI is not base64 encoded")
	}

	ext := ".png"
	switch mimeType {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	default:
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, "", fmt.Errorf("unsupported media type %q", mimeType)
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload: %v", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image payload")
	}

	return data, ext, nil
}

// buildDetails assembles the human-readable breakdown shown alongside the
// verdict.
func buildDetails(report *models.VerificationReport, bundle *models.AnalysisBundle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall Score: %.2f/100\n", report.OverallScore)
	fmt.Fprintf(&b, "Verdict: %s (Confidence: %.0f)\n", report.Verdict, report.Confidence)
	b.WriteString("---\n")
	b.WriteString("Stage Scores:\n")
	for _, kind := range models.AllStageKinds {
		score, ok := report.StageScores[kind]
		if !ok {
			fmt.Fprintf(&b, "- %s: not available\n", stageName(kind))
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f\n", stageName(kind), score)
	}

	if codes := bundle.QRCodes(); len(codes) > 0 {
		b.WriteString("---\n")
		b.WriteString("QR Code Information:\n")
		for _, code := range codes {
			fmt.Fprintf(&b, "- Type: %s, Data: %s\n", code.Type, code.Data)
		}
	}

	switch {
	case report.MatchFound:
		b.WriteString("---\n")
		b.WriteString("A matching master record was found in the registry.\n")
	case report.LookupDegraded:
		b.WriteString("---\n")
		b.WriteString("Master registry was unreachable; match result is inconclusive.\n")
	}

	return strings.TrimSpace(b.String())
}

func stageName(kind models.StageKind) string {
	switch kind {
	case models.StageELA:
		return "ELA"
	case models.StageOCR:
		return "OCR"
	case models.StageQR:
		return "QR"
	case models.StageWatermark:
		return "Watermark"
	case models.StageLayout:
		return "Layout"
	case models.StageML:
		return "ML Model"
	default:
		return string(kind)
	}
}
