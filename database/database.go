package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"doc-verify-pipeline/config"
	"doc-verify-pipeline/models"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

// Database represents the database connection
type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection with exponential backoff retry
	var waitInterval = 1 * time.Second
	var pingErr error
	for attempt := 0; attempt < cfg.DBConnectAttempts; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			break
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2 // Exponential backoff: 1s, 2s, 4s, 8s, ...
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", pingErr)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Database{db: db}, nil
}

// NewDatabaseFromConn wraps an existing connection; used by tests.
func NewDatabaseFromConn(db *sql.DB) *Database {
	return &Database{db: db}
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// GetDB returns the underlying sql.DB
func (d *Database) GetDB() *sql.DB {
	return d.db
}

// CreateTables creates the document_masters and verifications tables if they
// don't exist.
func (d *Database) CreateTables() error {
	mastersQuery := `
	CREATE TABLE IF NOT EXISTS document_masters (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		student_name VARCHAR(255) NOT NULL,
		university_name VARCHAR(255) NOT NULL,
		degree_name VARCHAR(255) NOT NULL,
		date_of_issue DATE,
		image_uri LONGTEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_masters_student_name (student_name),
		INDEX idx_masters_university_name (university_name),
		INDEX idx_masters_degree_name (degree_name)
	)`

	if _, err := d.db.Exec(mastersQuery); err != nil {
		return fmt.Errorf("failed to create document_masters table: %w", err)
	}

	verificationsQuery := `
	CREATE TABLE IF NOT EXISTS verifications (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		verdict VARCHAR(32) NOT NULL,
		overall_score FLOAT NOT NULL,
		confidence FLOAT NOT NULL,
		is_authentic BOOLEAN NOT NULL,
		extracted_text TEXT,
		stage_scores TEXT,
		details TEXT,
		match_found BOOLEAN DEFAULT FALSE,
		matched_master_id VARCHAR(36) DEFAULT '',
		lookup_degraded BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_verifications_verdict (verdict),
		INDEX idx_verifications_created_at (created_at)
	)`

	if _, err := d.db.Exec(verificationsQuery); err != nil {
		return fmt.Errorf("failed to create verifications table: %w", err)
	}

	log.Info("document_masters and verifications tables created/verified successfully")
	return nil
}

// InsertMasterDocument stores a new master record. Masters are immutable
// once stored.
func (d *Database) InsertMasterDocument(ctx context.Context, master *models.MasterDocument) error {
	query := `
	INSERT INTO document_masters (id, student_name, university_name, degree_name, date_of_issue, image_uri)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		master.ID,
		master.StudentName,
		master.UniversityName,
		master.DegreeName,
		master.DateOfIssue,
		master.ImageURI,
	)
	if err != nil {
		return fmt.Errorf("failed to insert master document: %w", err)
	}
	return nil
}

// FindMasterDocument looks up at most one master record matching every
// non-empty criterion with exact equality. The image locator is excluded
// from the row; fetch it with GetMasterImageURI after a confirmed match.
// Ties break deterministically on the most recently issued record.
func (d *Database) FindMasterDocument(ctx context.Context, criteria models.MatchCriteria) (*models.MasterDocument, error) {
	query := `
	SELECT id, student_name, university_name, degree_name,
		COALESCE(DATE_FORMAT(date_of_issue, '%Y-%m-%d'), ''), created_at
	FROM document_masters
	WHERE 1=1`

	var args []any
	if criteria.StudentName != "" {
		query += " AND student_name = ?"
		args = append(args, criteria.StudentName)
	}
	if criteria.UniversityName != "" {
		query += " AND university_name = ?"
		args = append(args, criteria.UniversityName)
	}
	if criteria.DegreeName != "" {
		query += " AND degree_name = ?"
		args = append(args, criteria.DegreeName)
	}
	if len(args) == 0 {
		return nil, nil
	}

	query += " ORDER BY date_of_issue DESC, id ASC LIMIT 1"

	var master models.MasterDocument
	err := d.db.QueryRowContext(ctx, query, args...).Scan(
		&master.ID,
		&master.StudentName,
		&master.UniversityName,
		&master.DegreeName,
		&master.DateOfIssue,
		&master.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query master documents: %w", err)
	}

	return &master, nil
}

// GetMasterImageURI fetches the stored image locator for a master record.
func (d *Database) GetMasterImageURI(ctx context.Context, id string) (string, error) {
	var uri string
	err := d.db.QueryRowContext(ctx,
		"SELECT COALESCE(image_uri, '') FROM document_masters WHERE id = ?", id).Scan(&uri)
	if err != nil {
		return "", fmt.Errorf("failed to fetch master image: %w", err)
	}
	return uri, nil
}

// SaveVerification stores a completed verification report.
func (d *Database) SaveVerification(ctx context.Context, report *models.VerificationReport) error {
	stageScores, err := json.Marshal(report.StageScores)
	if err != nil {
		return fmt.Errorf("failed to marshal stage scores: %w", err)
	}

	query := `
	INSERT INTO verifications
		(id, verdict, overall_score, confidence, is_authentic, extracted_text,
		 stage_scores, details, match_found, matched_master_id, lookup_degraded)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = d.db.ExecContext(ctx, query,
		report.ID,
		report.Verdict,
		report.OverallScore,
		report.Confidence,
		report.IsAuthentic,
		report.ExtractedText,
		string(stageScores),
		report.Details,
		report.MatchFound,
		report.MatchedMasterID,
		report.LookupDegraded,
	)
	if err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}
	return nil
}

// GetVerification fetches a stored verification report by ID.
func (d *Database) GetVerification(ctx context.Context, id string) (*models.VerificationReport, error) {
	query := `
	SELECT id, verdict, overall_score, confidence, is_authentic,
		extracted_text, stage_scores, details, match_found, matched_master_id,
		lookup_degraded, created_at
	FROM verifications
	WHERE id = ?`

	var report models.VerificationReport
	var stageScores string
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&report.ID,
		&report.Verdict,
		&report.OverallScore,
		&report.Confidence,
		&report.IsAuthentic,
		&report.ExtractedText,
		&stageScores,
		&report.Details,
		&report.MatchFound,
		&report.MatchedMasterID,
		&report.LookupDegraded,
		&report.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch verification: %w", err)
	}

	if stageScores != "" {
		if err := json.Unmarshal([]byte(stageScores), &report.StageScores); err != nil {
			log.Errorf("Corrupt stage_scores for verification %s: %v", id, err)
		}
	}

	return &report, nil
}

// VerificationStats holds aggregate counts for the stats endpoint.
type VerificationStats struct {
	TotalVerifications int            `json:"total_verifications"`
	TotalMasters       int            `json:"total_masters"`
	ByVerdict          map[string]int `json:"by_verdict"`
}

// GetStats returns aggregate verification statistics.
func (d *Database) GetStats(ctx context.Context) (*VerificationStats, error) {
	stats := &VerificationStats{ByVerdict: make(map[string]int)}

	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM verifications").Scan(&stats.TotalVerifications); err != nil {
		return nil, fmt.Errorf("failed to count verifications: %w", err)
	}

	if err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM document_masters").Scan(&stats.TotalMasters); err != nil {
		return nil, fmt.Errorf("failed to count masters: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT verdict, COUNT(*) as count
		FROM verifications
		GROUP BY verdict
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group verifications by verdict: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var verdict string
		var count int
		if err := rows.Scan(&verdict, &count); err != nil {
			continue
		}
		stats.ByVerdict[verdict] = count
	}

	return stats, nil
}
