package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxacaptions/caption-pipeline/internal/types"
)

// MetadataDB handles SQLite database operations
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		batch_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		status TEXT NOT NULL,
		caption_count INTEGER,
		output_path TEXT,
		archive_path TEXT,
		gdrive_url TEXT,
		error TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_created_at ON outcomes(created_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_batch_id ON outcomes(batch_id);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveOutcome records one finished job.
func (mdb *MetadataDB) SaveOutcome(
	batchID string, outcome types.JobOutcome,
	captionCount int, archivePath, gdriveURL string,
) error {
	query := `
	INSERT INTO outcomes (job_id, batch_id, file_name, status, caption_count, output_path, archive_path, gdrive_url, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.Exec(query, outcome.JobID, batchID, outcome.FileName,
		outcome.Status, captionCount, outcome.OutputPath, archivePath,
		gdriveURL, outcome.Error, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save outcome: %v", err)
	}

	return nil
}

// GetOutcome retrieves one outcome by job ID
func (mdb *MetadataDB) GetOutcome(jobID string) (map[string]interface{}, error) {
	query := `
	SELECT job_id, batch_id, file_name, status, caption_count, output_path, archive_path, gdrive_url, error, created_at
	FROM outcomes WHERE job_id = ?
	`

	row := mdb.db.QueryRow(query, jobID)
	return scanOutcome(row.Scan)
}

// ListOutcomes returns recent outcomes, newest first
func (mdb *MetadataDB) ListOutcomes(limit int) ([]map[string]interface{}, error) {
	query := `
	SELECT job_id, batch_id, file_name, status, caption_count, output_path, archive_path, gdrive_url, error, created_at
	FROM outcomes ORDER BY created_at DESC LIMIT ?
	`

	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %v", err)
	}
	defer rows.Close()

	var outcomes []map[string]interface{}
	for rows.Next() {
		outcome, err := scanOutcome(rows.Scan)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

// ListBatchOutcomes returns every outcome of one batch, oldest first
func (mdb *MetadataDB) ListBatchOutcomes(batchID string) ([]map[string]interface{}, error) {
	query := `
	SELECT job_id, batch_id, file_name, status, caption_count, output_path, archive_path, gdrive_url, error, created_at
	FROM outcomes WHERE batch_id = ? ORDER BY id ASC
	`

	rows, err := mdb.db.Query(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch outcomes: %v", err)
	}
	defer rows.Close()

	var outcomes []map[string]interface{}
	for rows.Next() {
		outcome, err := scanOutcome(rows.Scan)
		if err != nil {
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

func scanOutcome(scan func(dest ...any) error) (map[string]interface{}, error) {
	var (
		jobID, batchID, fileName, status           string
		outputPath, archivePath, gdriveURL, errMsg sql.NullString
		captionCount                               sql.NullInt64
		createdAt                                  time.Time
	)

	err := scan(&jobID, &batchID, &fileName, &status, &captionCount,
		&outputPath, &archivePath, &gdriveURL, &errMsg, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan outcome: %v", err)
	}

	return map[string]interface{}{
		"job_id":        jobID,
		"batch_id":      batchID,
		"file_name":     fileName,
		"status":        status,
		"caption_count": captionCount.Int64,
		"output_path":   outputPath.String,
		"archive_path":  archivePath.String,
		"gdrive_url":    gdriveURL.String,
		"error":         errMsg.String,
		"created_at":    createdAt,
	}, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
