package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/pkg/logger"
)

// ErrNotFound indicates a lookup missed.
var ErrNotFound = errors.New("not found")

// DomainRepository handles the engine-path reads and writes over
// students, subjects and marks.
type DomainRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewDomainRepository creates a new domain repository
func NewDomainRepository(db *pgxpool.Pool, log *logger.Logger) *DomainRepository {
	return &DomainRepository{
		db:     db,
		logger: log.WithComponent("domain-repo"),
	}
}

// StudentByUSN looks up a student by USN within a section.
func (r *DomainRepository) StudentByUSN(ctx context.Context, usn string, sectionID int64) (*models.Student, error) {
	query := `
		SELECT stud_id, batch_id, section_id, usn, stud_name, cgpa, current_sem, active, created_at, updated_at
		FROM students
		WHERE usn = $1 AND section_id = $2
	`

	s := &models.Student{}
	err := r.db.QueryRow(ctx, query, usn, sectionID).Scan(
		&s.StudID, &s.BatchID, &s.SectionID, &s.USN, &s.StudName,
		&s.CGPA, &s.CurrentSem, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student %s: %w", usn, err)
	}
	return s, nil
}

// UpdateStudentScraped overwrites the student's name and revives the
// row in one statement, as a successful scrape proves enrollment.
func (r *DomainRepository) UpdateStudentScraped(ctx context.Context, studID int64, name string) error {
	query := `
		UPDATE students
		SET stud_name = $1, active = TRUE, updated_at = NOW()
		WHERE stud_id = $2
	`

	if _, err := r.db.Exec(ctx, query, name, studID); err != nil {
		return fmt.Errorf("failed to update scraped student %d: %w", studID, err)
	}
	return nil
}

// DeactivateStudent marks a student as no longer enrolled after the
// portal reported their USN invalid.
func (r *DomainRepository) DeactivateStudent(ctx context.Context, studID int64) error {
	query := `
		UPDATE students
		SET active = FALSE, updated_at = NOW()
		WHERE stud_id = $1
	`

	if _, err := r.db.Exec(ctx, query, studID); err != nil {
		return fmt.Errorf("failed to deactivate student %d: %w", studID, err)
	}
	return nil
}

// SubjectIDByCode resolves a subject code within a semester.
func (r *DomainRepository) SubjectIDByCode(ctx context.Context, subCode string, semID int64) (int64, error) {
	query := `
		SELECT subject_id FROM subjects
		WHERE sub_code = $1 AND sem_id = $2
	`

	var id int64
	err := r.db.QueryRow(ctx, query, subCode, semID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up subject %s: %w", subCode, err)
	}
	return id, nil
}

// MarkIDFor returns the id of an existing mark row for the tuple, or
// 0 when the student has no mark for the subject yet.
func (r *DomainRepository) MarkIDFor(ctx context.Context, studID, subjectID, sectionID int64) (int64, error) {
	query := `
		SELECT mark_id FROM marks
		WHERE stud_id = $1 AND subject_id = $2 AND section_id = $3
	`

	var id int64
	err := r.db.QueryRow(ctx, query, studID, subjectID, sectionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to check mark existence: %w", err)
	}
	return id, nil
}

// UpdateMark replaces the score fields of an existing mark row.
func (r *DomainRepository) UpdateMark(ctx context.Context, markID int64, m models.Mark) error {
	query := `
		UPDATE marks
		SET internal = $1, external = $2, total = $3, result = $4, grade = $5, updated_at = NOW()
		WHERE mark_id = $6
	`

	if _, err := r.db.Exec(ctx, query, m.Internal, m.External, m.Total, m.Result, m.Grade, markID); err != nil {
		return fmt.Errorf("failed to update mark %d: %w", markID, err)
	}

	r.logger.Debugf("Updated mark %d", markID)
	return nil
}

// InsertMarks writes a batch of new mark rows in one transaction.
func (r *DomainRepository) InsertMarks(ctx context.Context, marks []models.Mark) error {
	if len(marks) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO marks (stud_id, subject_id, section_id, internal, external, total, result, grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	for _, m := range marks {
		if _, err := tx.Exec(ctx, query,
			m.StudID, m.SubjectID, m.SectionID,
			m.Internal, m.External, m.Total, m.Result, m.Grade,
		); err != nil {
			return fmt.Errorf("failed to insert mark for subject %d: %w", m.SubjectID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit marks: %w", err)
	}

	r.logger.Debugf("Inserted %d marks", len(marks))
	return nil
}

// SectionByID loads a section row.
func (r *DomainRepository) SectionByID(ctx context.Context, sectionID int64) (*models.Section, error) {
	query := `
		SELECT section_id, batch_id, section_name, num_students, start_usn, end_usn, created_at, updated_at
		FROM sections
		WHERE section_id = $1
	`

	s := &models.Section{}
	err := r.db.QueryRow(ctx, query, sectionID).Scan(
		&s.SectionID, &s.BatchID, &s.SectionName, &s.NumStudents,
		&s.StartUSN, &s.EndUSN, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section %d: %w", sectionID, err)
	}
	return s, nil
}

// BatchByID loads a batch row.
func (r *DomainRepository) BatchByID(ctx context.Context, batchID int64) (*models.Batch, error) {
	query := `
		SELECT batch_id, dept_id, batch_start_year, batch_end_year, scheme,
		       start_usn, end_usn, lateral_start_usn, lateral_end_usn, created_at, updated_at
		FROM batches
		WHERE batch_id = $1
	`

	b := &models.Batch{}
	err := r.db.QueryRow(ctx, query, batchID).Scan(
		&b.BatchID, &b.DeptID, &b.BatchStartYear, &b.BatchEndYear, &b.Scheme,
		&b.StartUSN, &b.EndUSN, &b.LateralStartUSN, &b.LateralEndUSN, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %d: %w", batchID, err)
	}
	return b, nil
}

// CurrentSemester returns the batch's semester flagged current.
func (r *DomainRepository) CurrentSemester(ctx context.Context, batchID int64) (*models.Semester, error) {
	query := `
		SELECT sem_id, batch_id, sem_num, current, created_at, updated_at
		FROM semesters
		WHERE batch_id = $1 AND current = TRUE
	`

	s := &models.Semester{}
	err := r.db.QueryRow(ctx, query, batchID).Scan(
		&s.SemID, &s.BatchID, &s.SemNum, &s.Current, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current semester for batch %d: %w", batchID, err)
	}
	return s, nil
}

// InsertSubjects writes a batch of subjects in one transaction and
// returns them with generated ids.
func (r *DomainRepository) InsertSubjects(ctx context.Context, subjects []models.Subject) ([]models.Subject, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO subjects (sem_id, sub_code, sub_name, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING subject_id, created_at, updated_at
	`

	out := make([]models.Subject, 0, len(subjects))
	for _, sub := range subjects {
		row := sub
		err := tx.QueryRow(ctx, query, sub.SemID, sub.SubCode, sub.SubName, sub.Credits).
			Scan(&row.SubjectID, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert subject %s: %w", sub.SubCode, err)
		}
		out = append(out, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit subjects: %w", err)
	}

	r.logger.Debugf("Inserted %d subjects", len(out))
	return out, nil
}

// StudentPerformance holds one subject's outcome joined with its
// credits, the unit of SGPA computation.
type StudentPerformance struct {
	SubCode  string `json:"sub_code"`
	SubName  string `json:"sub_name"`
	Internal int    `json:"internal"`
	External int    `json:"external"`
	Total    int    `json:"total"`
	Result   string `json:"result"`
	Grade    string `json:"grade"`
	Credits  int    `json:"credits"`
}

// PerformanceByStudent returns the student's marks for a semester
// joined with subject credits, ordered by subject code.
func (r *DomainRepository) PerformanceByStudent(ctx context.Context, studID, semID int64) ([]StudentPerformance, error) {
	query := `
		SELECT s.sub_code, s.sub_name, m.internal, m.external, m.total, m.result, m.grade, s.credits
		FROM marks m
		JOIN subjects s ON s.subject_id = m.subject_id
		WHERE m.stud_id = $1 AND s.sem_id = $2
		ORDER BY s.sub_code
	`

	rows, err := r.db.Query(ctx, query, studID, semID)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance for student %d: %w", studID, err)
	}
	defer rows.Close()

	var perf []StudentPerformance
	for rows.Next() {
		var p StudentPerformance
		if err := rows.Scan(&p.SubCode, &p.SubName, &p.Internal, &p.External, &p.Total, &p.Result, &p.Grade, &p.Credits); err != nil {
			return nil, fmt.Errorf("failed to scan performance row: %w", err)
		}
		perf = append(perf, p)
	}
	return perf, rows.Err()
}
