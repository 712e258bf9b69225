package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/pkg/logger"
)

// ExtractionRepository persists job descriptors, counters and
// invalid-USN lists. Only the owning coordinator mutates a given job
// row, so flushes are strictly serialized per job.
type ExtractionRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewExtractionRepository creates a new extraction repository
func NewExtractionRepository(db *pgxpool.Pool, log *logger.Logger) *ExtractionRepository {
	return &ExtractionRepository{
		db:     db,
		logger: log.WithComponent("extraction-repo"),
	}
}

// CreateExtraction inserts a fresh job row with zeroed counters.
func (r *ExtractionRepository) CreateExtraction(ctx context.Context, sectionID, semID int64, totalUSNs int) (int64, error) {
	query := `
		INSERT INTO extractions (section_id, sem_id, total_usns, num_completed, num_invalid,
		                         num_captcha, num_timeout, reattempts, progress, completed,
		                         failed, time_taken, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, 0.0, FALSE, FALSE, 0.0, NOW(), NOW())
		RETURNING extraction_id
	`

	var id int64
	if err := r.db.QueryRow(ctx, query, sectionID, semID, totalUSNs).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create extraction: %w", err)
	}

	r.logger.Debugf("Created extraction %d for section %d (%d USNs)", id, sectionID, totalUSNs)
	return id, nil
}

// CreateExtractionInvalid inserts the job's empty invalid-USN child row.
func (r *ExtractionRepository) CreateExtractionInvalid(ctx context.Context, extractionID int64) (int64, error) {
	query := `
		INSERT INTO extraction_invalids (extraction_id, invalid_usns, captcha_usns, timeout_usns, created_at, updated_at)
		VALUES ($1, '', '', '', NOW(), NOW())
		RETURNING invalid_id
	`

	var id int64
	if err := r.db.QueryRow(ctx, query, extractionID).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to create extraction invalid record: %w", err)
	}
	return id, nil
}

// GetExtraction returns the full job row snapshot.
func (r *ExtractionRepository) GetExtraction(ctx context.Context, extractionID int64) (*models.Extraction, error) {
	query := `
		SELECT extraction_id, section_id, sem_id, total_usns, num_completed, num_invalid,
		       num_captcha, num_timeout, reattempts, progress, completed, failed, time_taken,
		       created_at, updated_at
		FROM extractions
		WHERE extraction_id = $1
	`

	e := &models.Extraction{}
	err := r.db.QueryRow(ctx, query, extractionID).Scan(
		&e.ExtractionID, &e.SectionID, &e.SemID, &e.TotalUSNs, &e.NumCompleted, &e.NumInvalid,
		&e.NumCaptcha, &e.NumTimeout, &e.Reattempts, &e.Progress, &e.Completed, &e.Failed,
		&e.TimeTaken, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction %d: %w", extractionID, err)
	}
	return e, nil
}

// FlushProgress folds a batch of counter deltas into the job row in
// one transaction: read current counters, add, recompute progress,
// write back. A flushed counter is visible to concurrent readers as
// soon as the transaction commits.
func (r *ExtractionRepository) FlushProgress(ctx context.Context, extractionID int64, delta models.ProgressDelta) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin flush transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var totalUSNs, numCompleted, numInvalid, numCaptcha, numTimeout, reattempts int
	var timeTaken float64
	selectQuery := `
		SELECT total_usns, num_completed, num_invalid, num_captcha, num_timeout, reattempts, time_taken
		FROM extractions
		WHERE extraction_id = $1
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, selectQuery, extractionID).Scan(
		&totalUSNs, &numCompleted, &numInvalid, &numCaptcha, &numTimeout, &reattempts, &timeTaken,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read extraction %d for flush: %w", extractionID, err)
	}

	numCompleted += delta.Count
	numInvalid += delta.Invalids
	numCaptcha += delta.Captchas
	numTimeout += delta.Timeouts
	reattempts += delta.Reattempts
	timeTaken += delta.Elapsed

	progress := RoundProgress(numCompleted, totalUSNs)
	completed := progress == 100.0

	updateQuery := `
		UPDATE extractions
		SET num_completed = $1, num_invalid = $2, num_captcha = $3, num_timeout = $4,
		    reattempts = $5, progress = $6, completed = $7, time_taken = $8, updated_at = NOW()
		WHERE extraction_id = $9
	`
	if _, err := tx.Exec(ctx, updateQuery,
		numCompleted, numInvalid, numCaptcha, numTimeout,
		reattempts, progress, completed, timeTaken, extractionID,
	); err != nil {
		return fmt.Errorf("failed to flush extraction %d: %w", extractionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit flush: %w", err)
	}

	r.logger.Debugf("Flushed extraction %d: completed=%d/%d progress=%.2f", extractionID, numCompleted, totalUSNs, progress)
	return nil
}

// AppendInvalidUSNs writes the job's accumulated failure lists to its
// child row in one update.
func (r *ExtractionRepository) AppendInvalidUSNs(ctx context.Context, invalidID int64, invalid, captcha, timeout []string) error {
	query := `
		UPDATE extraction_invalids
		SET invalid_usns = $1, captcha_usns = $2, timeout_usns = $3, updated_at = NOW()
		WHERE invalid_id = $4
	`

	if _, err := r.db.Exec(ctx, query,
		strings.Join(invalid, ","),
		strings.Join(captcha, ","),
		strings.Join(timeout, ","),
		invalidID,
	); err != nil {
		return fmt.Errorf("failed to update invalid record %d: %w", invalidID, err)
	}
	return nil
}

// GetExtractionInvalid returns the job's invalid-USN child row.
func (r *ExtractionRepository) GetExtractionInvalid(ctx context.Context, extractionID int64) (*models.ExtractionInvalid, error) {
	query := `
		SELECT invalid_id, extraction_id, invalid_usns, captcha_usns, timeout_usns, created_at, updated_at
		FROM extraction_invalids
		WHERE extraction_id = $1
	`

	inv := &models.ExtractionInvalid{}
	err := r.db.QueryRow(ctx, query, extractionID).Scan(
		&inv.InvalidID, &inv.ExtractionID, &inv.InvalidUSNs, &inv.CaptchaUSNs, &inv.TimeoutUSNs,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invalid record for extraction %d: %w", extractionID, err)
	}
	return inv, nil
}

// MarkFailed flags the job as failed; counters keep whatever the last
// flush wrote.
func (r *ExtractionRepository) MarkFailed(ctx context.Context, extractionID int64) error {
	query := `
		UPDATE extractions
		SET failed = TRUE, updated_at = NOW()
		WHERE extraction_id = $1
	`

	if _, err := r.db.Exec(ctx, query, extractionID); err != nil {
		return fmt.Errorf("failed to mark extraction %d failed: %w", extractionID, err)
	}
	return nil
}

// RoundProgress computes completion percentage rounded to two decimals.
func RoundProgress(numCompleted, totalUSNs int) float64 {
	if totalUSNs == 0 {
		return 0
	}
	return math.Round(float64(numCompleted)/float64(totalUSNs)*100*100) / 100
}
