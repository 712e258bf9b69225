package marks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/pkg/logger"
)

// Store is the slice of the domain store the reconciler needs.
type Store interface {
	SubjectIDByCode(ctx context.Context, subCode string, semID int64) (int64, error)
	MarkIDFor(ctx context.Context, studID, subjectID, sectionID int64) (int64, error)
	UpdateMark(ctx context.Context, markID int64, mark models.Mark) error
	InsertMarks(ctx context.Context, marks []models.Mark) error
	UpdateStudentScraped(ctx context.Context, studID int64, name string) error
}

// Reconciler folds scraped records into the relational store: student
// row first, then one upsert decision per subject.
type Reconciler struct {
	store  Store
	logger *logger.Logger
}

// NewReconciler creates a marks reconciler
func NewReconciler(store Store, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: log.WithComponent("marks-reconciler"),
	}
}

// Reconcile applies one scraped record for one student. The student
// mutation (name overwrite + reactivation) lands before any mark
// write. A subject code with no row in the job's semester is logged
// and its mark skipped; it never fails the record.
func (r *Reconciler) Reconcile(ctx context.Context, rec *models.StudentRecord, student *models.Student, sectionID, semID int64) error {
	// The portal prefixes names with a space; drop it before comparing.
	scrapedName := strings.TrimPrefix(rec.Name, " ")
	if scrapedName != student.StudName || !student.Active {
		if err := r.store.UpdateStudentScraped(ctx, student.StudID, scrapedName); err != nil {
			return fmt.Errorf("failed to update student %s: %w", student.USN, err)
		}
	}

	var inserts []models.Mark
	for _, sub := range rec.Marks {
		if err := ValidateBounds(sub); err != nil {
			r.logger.Warnf("Skipping %s %s: %v", student.USN, sub.SubCode, err)
			continue
		}

		subjectID, err := r.store.SubjectIDByCode(ctx, sub.SubCode, semID)
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Warnf("No subject %s in semester %d, skipping mark for %s", sub.SubCode, semID, student.USN)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up subject %s: %w", sub.SubCode, err)
		}

		mark := models.Mark{
			StudID:    student.StudID,
			SubjectID: subjectID,
			SectionID: sectionID,
			Internal:  sub.Internal,
			External:  sub.External,
			Total:     sub.Total,
			Result:    sub.Result,
			Grade:     GradeFor(sub.Result, sub.Total),
		}

		markID, err := r.store.MarkIDFor(ctx, student.StudID, subjectID, sectionID)
		if err != nil {
			return fmt.Errorf("failed to check existing mark for %s: %w", sub.SubCode, err)
		}

		if markID != 0 {
			if err := r.store.UpdateMark(ctx, markID, mark); err != nil {
				return fmt.Errorf("failed to update mark %d: %w", markID, err)
			}
			continue
		}
		inserts = append(inserts, mark)
	}

	if len(inserts) > 0 {
		if err := r.store.InsertMarks(ctx, inserts); err != nil {
			return fmt.Errorf("failed to insert marks for %s: %w", student.USN, err)
		}
	}

	return nil
}
