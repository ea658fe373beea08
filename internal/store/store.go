// Package store provides SQLite-backed persistence for scan history:
// completed scans, their findings, and rendered reports.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pqshift/pqshift/internal/correlate"
	"github.com/pqshift/pqshift/internal/cryptoscan"
	"github.com/pqshift/pqshift/internal/risk"
)

// ScanRecord is one persisted scan run.
type ScanRecord struct {
	ID               string
	SourceType       string
	SourcePath       string
	FilesScanned     int
	TotalFindings    int
	MatchedFindings  int
	AverageRiskScore float64
	CreatedAt        time.Time
}

// ReportRecord is one rendered report attached to a scan.
type ReportRecord struct {
	ScanID    string
	Format    string
	Content   []byte
	CreatedAt time.Time
}

// Store wraps a SQLite database for scan history persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database at dbPath and ensures all
// required tables exist. Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id                 TEXT PRIMARY KEY,
			source_type        TEXT NOT NULL,
			source_path        TEXT NOT NULL,
			files_scanned      INTEGER NOT NULL,
			total_findings     INTEGER NOT NULL,
			matched_findings   INTEGER NOT NULL,
			average_risk_score REAL NOT NULL,
			created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			scan_id         TEXT NOT NULL REFERENCES scans(id),
			file_path       TEXT NOT NULL,
			line_number     INTEGER NOT NULL,
			algorithm       TEXT NOT NULL,
			key_size        INTEGER,
			module_name     TEXT NOT NULL,
			risk_score      REAL,
			priority        INTEGER,
			risk_label      TEXT,
			recommended_pqc TEXT,
			code_snippet    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reports (
			scan_id    TEXT NOT NULL REFERENCES scans(id),
			format     TEXT NOT NULL,
			content    BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (scan_id, format)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// SaveScan persists one scan run and its enriched findings atomically and
// returns the generated scan ID.
func (s *Store) SaveScan(sourceType, sourcePath string, filesScanned int,
	findings []correlate.EnrichedFinding, averageRiskScore float64) (string, error) {

	id := uuid.NewString()
	matched := 0
	for i := range findings {
		if findings[i].Matched() {
			matched++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO scans (id, source_type, source_path, files_scanned,
			total_findings, matched_findings, average_risk_score)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sourceType, sourcePath, filesScanned,
		len(findings), matched, averageRiskScore)
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}

	for i := range findings {
		f := &findings[i]

		var keySize any
		if bits, ok := f.KeySizeBits(); ok {
			keySize = bits
		}
		var riskScore, priority, label, pqc any
		if f.RiskScore != nil {
			riskScore = *f.RiskScore
		}
		if f.Priority != nil {
			priority = *f.Priority
		}
		if level, ok := f.RiskLevel(); ok {
			label = string(level)
		}
		if f.RecommendedPQC != nil {
			pqc = *f.RecommendedPQC
		}

		_, err = tx.Exec(
			`INSERT INTO findings (scan_id, file_path, line_number, algorithm,
				key_size, module_name, risk_score, priority, risk_label,
				recommended_pqc, code_snippet)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, f.FilePath, f.LineNumber, string(f.Algorithm),
			keySize, f.ModuleName, riskScore, priority, label, pqc, f.CodeSnippet)
		if err != nil {
			return "", fmt.Errorf("insert finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// GetScan returns one scan by ID.
func (s *Store) GetScan(id string) (*ScanRecord, error) {
	var rec ScanRecord
	err := s.db.QueryRow(
		`SELECT id, source_type, source_path, files_scanned, total_findings,
			matched_findings, average_risk_score, created_at
		 FROM scans WHERE id = ?`, id).
		Scan(&rec.ID, &rec.SourceType, &rec.SourcePath, &rec.FilesScanned,
			&rec.TotalFindings, &rec.MatchedFindings, &rec.AverageRiskScore, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scan %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}
	return &rec, nil
}

// ListScans returns the most recent scans, newest first.
func (s *Store) ListScans(limit int) ([]ScanRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, source_type, source_path, files_scanned, total_findings,
			matched_findings, average_risk_score, created_at
		 FROM scans ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var recs []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		if err := rows.Scan(&rec.ID, &rec.SourceType, &rec.SourcePath,
			&rec.FilesScanned, &rec.TotalFindings, &rec.MatchedFindings,
			&rec.AverageRiskScore, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// FindingsForScan returns a scan's persisted findings in insertion order.
// Only the denormalized columns survive persistence; the full risk record
// does not.
func (s *Store) FindingsForScan(scanID string) ([]correlate.EnrichedFinding, error) {
	rows, err := s.db.Query(
		`SELECT file_path, line_number, algorithm, key_size, module_name,
			risk_score, priority, risk_label, recommended_pqc, code_snippet
		 FROM findings WHERE scan_id = ? ORDER BY rowid`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []correlate.EnrichedFinding
	for rows.Next() {
		var f correlate.EnrichedFinding
		var algorithm string
		var keySize sql.NullInt64
		var riskScore sql.NullFloat64
		var priority sql.NullInt64
		var label, pqc sql.NullString

		if err := rows.Scan(&f.FilePath, &f.LineNumber, &algorithm, &keySize,
			&f.ModuleName, &riskScore, &priority, &label, &pqc, &f.CodeSnippet); err != nil {
			return nil, fmt.Errorf("finding row: %w", err)
		}

		f.Algorithm = cryptoscan.Algorithm(algorithm)
		if keySize.Valid {
			f.KeySize = &cryptoscan.KeySize{Bits: int(keySize.Int64)}
		}
		if riskScore.Valid {
			v := riskScore.Float64
			f.RiskScore = &v
		}
		if priority.Valid {
			v := int(priority.Int64)
			f.Priority = &v
		}
		if label.Valid {
			v := risk.RiskLevel(label.String)
			f.RiskLabel = &v
		}
		if pqc.Valid {
			v := pqc.String
			f.RecommendedPQC = &v
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// SaveReport stores one rendered report, replacing any previous render of
// the same format for the scan.
func (s *Store) SaveReport(scanID, format string, content []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO reports (scan_id, format, content) VALUES (?, ?, ?)
		 ON CONFLICT (scan_id, format) DO UPDATE SET
			content = excluded.content, created_at = datetime('now')`,
		scanID, format, content)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport returns one rendered report for a scan.
func (s *Store) GetReport(scanID, format string) (*ReportRecord, error) {
	var rec ReportRecord
	err := s.db.QueryRow(
		`SELECT scan_id, format, content, created_at
		 FROM reports WHERE scan_id = ? AND format = ?`, scanID, format).
		Scan(&rec.ScanID, &rec.Format, &rec.Content, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s/%s not found", scanID, format)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	return &rec, nil
}
