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

// CatalogRepository backs the thin CRUD surface over the cohort
// entities: departments, batches, semesters, sections, students,
// subjects and marks.
type CatalogRepository struct {
	db     *pgxpool.Pool
	logger *logger.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *pgxpool.Pool, log *logger.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: log.WithComponent("catalog-repo"),
	}
}

// ListDepartments returns all departments.
func (r *CatalogRepository) ListDepartments(ctx context.Context) ([]models.Department, error) {
	query := `
		SELECT dept_id, dept_name, created_at, updated_at
		FROM departments
		ORDER BY dept_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var out []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.DeptID, &d.DeptName, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDepartment inserts a department and returns it with its id.
func (r *CatalogRepository) CreateDepartment(ctx context.Context, name string) (*models.Department, error) {
	query := `
		INSERT INTO departments (dept_name, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		RETURNING dept_id, dept_name, created_at, updated_at
	`

	d := &models.Department{}
	if err := r.db.QueryRow(ctx, query, name).Scan(&d.DeptID, &d.DeptName, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return d, nil
}

// DeleteDepartment removes a department; children cascade.
func (r *CatalogRepository) DeleteDepartment(ctx context.Context, deptID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM departments WHERE dept_id = $1`, deptID)
	if err != nil {
		return fmt.Errorf("failed to delete department %d: %w", deptID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBatches returns all batches of a department.
func (r *CatalogRepository) ListBatches(ctx context.Context, deptID int64) ([]models.Batch, error) {
	query := `
		SELECT batch_id, dept_id, batch_start_year, batch_end_year, scheme,
		       start_usn, end_usn, lateral_start_usn, lateral_end_usn, created_at, updated_at
		FROM batches
		WHERE dept_id = $1
		ORDER BY batch_start_year
	`

	rows, err := r.db.Query(ctx, query, deptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var out []models.Batch
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(&b.BatchID, &b.DeptID, &b.BatchStartYear, &b.BatchEndYear, &b.Scheme,
			&b.StartUSN, &b.EndUSN, &b.LateralStartUSN, &b.LateralEndUSN, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBatch inserts a batch row.
func (r *CatalogRepository) CreateBatch(ctx context.Context, b models.Batch) (*models.Batch, error) {
	query := `
		INSERT INTO batches (dept_id, batch_start_year, batch_end_year, scheme,
		                     start_usn, end_usn, lateral_start_usn, lateral_end_usn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING batch_id, created_at, updated_at
	`

	row := b
	err := r.db.QueryRow(ctx, query, b.DeptID, b.BatchStartYear, b.BatchEndYear, b.Scheme,
		b.StartUSN, b.EndUSN, b.LateralStartUSN, b.LateralEndUSN).
		Scan(&row.BatchID, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}
	return &row, nil
}

// ListSemesters returns a batch's semesters in order.
func (r *CatalogRepository) ListSemesters(ctx context.Context, batchID int64) ([]models.Semester, error) {
	query := `
		SELECT sem_id, batch_id, sem_num, current, created_at, updated_at
		FROM semesters
		WHERE batch_id = $1
		ORDER BY sem_num
	`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list semesters: %w", err)
	}
	defer rows.Close()

	var out []models.Semester
	for rows.Next() {
		var s models.Semester
		if err := rows.Scan(&s.SemID, &s.BatchID, &s.SemNum, &s.Current, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan semester: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSemester inserts a semester. Flagging it current clears the
// flag on the batch's other semesters in the same transaction, so at
// most one current semester exists per batch.
func (r *CatalogRepository) CreateSemester(ctx context.Context, s models.Semester) (*models.Semester, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin semester transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.Current {
		if _, err := tx.Exec(ctx,
			`UPDATE semesters SET current = FALSE, updated_at = NOW() WHERE batch_id = $1 AND current = TRUE`,
			s.BatchID,
		); err != nil {
			return nil, fmt.Errorf("failed to clear current semester: %w", err)
		}
	}

	query := `
		INSERT INTO semesters (batch_id, sem_num, current, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING sem_id, created_at, updated_at
	`

	row := s
	if err := tx.QueryRow(ctx, query, s.BatchID, s.SemNum, s.Current).
		Scan(&row.SemID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create semester: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit semester: %w", err)
	}
	return &row, nil
}

// ListSections returns a batch's sections.
func (r *CatalogRepository) ListSections(ctx context.Context, batchID int64) ([]models.Section, error) {
	query := `
		SELECT section_id, batch_id, section_name, num_students, start_usn, end_usn, created_at, updated_at
		FROM sections
		WHERE batch_id = $1
		ORDER BY section_name
	`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var out []models.Section
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.SectionID, &s.BatchID, &s.SectionName, &s.NumStudents,
			&s.StartUSN, &s.EndUSN, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSection inserts a section row.
func (r *CatalogRepository) CreateSection(ctx context.Context, s models.Section) (*models.Section, error) {
	query := `
		INSERT INTO sections (batch_id, section_name, num_students, start_usn, end_usn, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING section_id, created_at, updated_at
	`

	row := s
	err := r.db.QueryRow(ctx, query, s.BatchID, s.SectionName, s.NumStudents, s.StartUSN, s.EndUSN).
		Scan(&row.SectionID, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}
	return &row, nil
}

// ListStudents returns a section's students in USN order.
func (r *CatalogRepository) ListStudents(ctx context.Context, sectionID int64) ([]models.Student, error) {
	query := `
		SELECT stud_id, batch_id, section_id, usn, stud_name, cgpa, current_sem, active, created_at, updated_at
		FROM students
		WHERE section_id = $1
		ORDER BY usn
	`

	rows, err := r.db.Query(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.StudID, &s.BatchID, &s.SectionID, &s.USN, &s.StudName,
			&s.CGPA, &s.CurrentSem, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateStudents bulk-inserts student rows in one transaction.
func (r *CatalogRepository) CreateStudents(ctx context.Context, students []models.Student) (int, error) {
	if len(students) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin students transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO students (batch_id, section_id, usn, stud_name, cgpa, current_sem, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`

	for _, s := range students {
		if _, err := tx.Exec(ctx, query,
			s.BatchID, s.SectionID, s.USN, s.StudName, s.CGPA, s.CurrentSem, s.Active,
		); err != nil {
			return 0, fmt.Errorf("failed to insert student %s: %w", s.USN, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit students: %w", err)
	}

	r.logger.Debugf("Inserted %d students", len(students))
	return len(students), nil
}

// StudentByID loads one student row.
func (r *CatalogRepository) StudentByID(ctx context.Context, studID int64) (*models.Student, error) {
	query := `
		SELECT stud_id, batch_id, section_id, usn, stud_name, cgpa, current_sem, active, created_at, updated_at
		FROM students
		WHERE stud_id = $1
	`

	s := &models.Student{}
	err := r.db.QueryRow(ctx, query, studID).Scan(
		&s.StudID, &s.BatchID, &s.SectionID, &s.USN, &s.StudName,
		&s.CGPA, &s.CurrentSem, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student %d: %w", studID, err)
	}
	return s, nil
}

// ListSubjects returns a semester's subjects in code order.
func (r *CatalogRepository) ListSubjects(ctx context.Context, semID int64) ([]models.Subject, error) {
	query := `
		SELECT subject_id, sem_id, sub_code, sub_name, credits, created_at, updated_at
		FROM subjects
		WHERE sem_id = $1
		ORDER BY sub_code
	`

	rows, err := r.db.Query(ctx, query, semID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.SubjectID, &s.SemID, &s.SubCode, &s.SubName, &s.Credits, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListMarks returns a student's marks.
func (r *CatalogRepository) ListMarks(ctx context.Context, studID int64) ([]models.Mark, error) {
	query := `
		SELECT mark_id, stud_id, subject_id, section_id, internal, external, total, result, grade, created_at, updated_at
		FROM marks
		WHERE stud_id = $1
		ORDER BY mark_id
	`

	rows, err := r.db.Query(ctx, query, studID)
	if err != nil {
		return nil, fmt.Errorf("failed to list marks: %w", err)
	}
	defer rows.Close()

	var out []models.Mark
	for rows.Next() {
		var m models.Mark
		if err := rows.Scan(&m.MarkID, &m.StudID, &m.SubjectID, &m.SectionID,
			&m.Internal, &m.External, &m.Total, &m.Result, &m.Grade, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mark: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
