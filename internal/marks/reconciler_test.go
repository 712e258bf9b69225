package marks

import (
	"context"
	"testing"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/pkg/logger"
)

// fakeStore records reconciliation writes without a database.
type fakeStore struct {
	subjects map[string]int64          // sub_code -> subject_id
	existing map[int64]int64           // subject_id -> mark_id
	updates  map[int64]models.Mark     // mark_id -> new values
	inserts  []models.Mark
	renamed  map[int64]string // stud_id -> name
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subjects: make(map[string]int64),
		existing: make(map[int64]int64),
		updates:  make(map[int64]models.Mark),
		renamed:  make(map[int64]string),
	}
}

func (f *fakeStore) SubjectIDByCode(ctx context.Context, subCode string, semID int64) (int64, error) {
	id, ok := f.subjects[subCode]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) MarkIDFor(ctx context.Context, studID, subjectID, sectionID int64) (int64, error) {
	return f.existing[subjectID], nil
}

func (f *fakeStore) UpdateMark(ctx context.Context, markID int64, mark models.Mark) error {
	f.updates[markID] = mark
	return nil
}

func (f *fakeStore) InsertMarks(ctx context.Context, marks []models.Mark) error {
	f.inserts = append(f.inserts, marks...)
	return nil
}

func (f *fakeStore) UpdateStudentScraped(ctx context.Context, studID int64, name string) error {
	f.renamed[studID] = name
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func TestReconcileInsertsNewMark(t *testing.T) {
	store := newFakeStore()
	store.subjects["21CS51"] = 9

	rec := &models.StudentRecord{
		USN:  "1OX21CS001",
		Name: " ALICE",
		Marks: []models.SubjectMark{
			{SubCode: "21CS51", SubName: "Networks", Internal: 25, External: 40, Total: 65, Result: "P"},
		},
	}
	student := &models.Student{StudID: 4, USN: "1OX21CS001", StudName: "OLD NAME", Active: true}

	r := NewReconciler(store, testLogger())
	if err := r.Reconcile(context.Background(), rec, student, 7, 3); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if len(store.inserts) != 1 {
		t.Fatalf("expected 1 inserted mark, got %d", len(store.inserts))
	}
	m := store.inserts[0]
	if m.StudID != 4 || m.SubjectID != 9 || m.SectionID != 7 {
		t.Fatalf("unexpected mark keys: %+v", m)
	}
	if m.Grade != models.GradeFC {
		t.Fatalf("expected grade FC for P/65, got %q", m.Grade)
	}

	// Name differed after stripping the leading space, so the student
	// row is overwritten.
	if got := store.renamed[4]; got != "ALICE" {
		t.Fatalf("expected student renamed to ALICE, got %q", got)
	}
}

func TestReconcileUpdatesExistingMark(t *testing.T) {
	store := newFakeStore()
	store.subjects["21CS51"] = 9
	store.existing[9] = 77

	rec := &models.StudentRecord{
		USN:  "1OX21CS001",
		Name: " ALICE",
		Marks: []models.SubjectMark{
			{SubCode: "21CS51", Internal: 30, External: 48, Total: 78, Result: "P"},
		},
	}
	student := &models.Student{StudID: 4, StudName: "ALICE", Active: true}

	r := NewReconciler(store, testLogger())
	if err := r.Reconcile(context.Background(), rec, student, 7, 3); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if len(store.inserts) != 0 {
		t.Fatalf("expected no inserts, got %d", len(store.inserts))
	}
	updated, ok := store.updates[77]
	if !ok {
		t.Fatal("expected mark 77 to be updated")
	}
	if updated.Grade != models.GradeFCD {
		t.Fatalf("expected grade FCD for P/78, got %q", updated.Grade)
	}

	// Name matched and student was active: no student write.
	if _, ok := store.renamed[4]; ok {
		t.Fatal("did not expect a student update")
	}
}

func TestReconcileRevivesInactiveStudent(t *testing.T) {
	store := newFakeStore()
	store.subjects["21CS51"] = 9

	rec := &models.StudentRecord{
		USN:  "1OX21CS001",
		Name: " ALICE",
		Marks: []models.SubjectMark{
			{SubCode: "21CS51", Internal: 20, External: 20, Total: 40, Result: "P"},
		},
	}
	student := &models.Student{StudID: 4, StudName: "ALICE", Active: false}

	r := NewReconciler(store, testLogger())
	if err := r.Reconcile(context.Background(), rec, student, 7, 3); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if _, ok := store.renamed[4]; !ok {
		t.Fatal("expected inactive student to be revived even with unchanged name")
	}
}

func TestReconcileSkipsUnknownSubjectAndBadBounds(t *testing.T) {
	store := newFakeStore()
	store.subjects["21CS51"] = 9

	rec := &models.StudentRecord{
		USN:  "1OX21CS001",
		Name: " ALICE",
		Marks: []models.SubjectMark{
			{SubCode: "21XX99", Internal: 10, External: 10, Total: 20, Result: "P"}, // unknown subject
			{SubCode: "21CS51", Internal: 51, External: 10, Total: 61, Result: "P"}, // internal out of range
		},
	}
	student := &models.Student{StudID: 4, StudName: "ALICE", Active: true}

	r := NewReconciler(store, testLogger())
	if err := r.Reconcile(context.Background(), rec, student, 7, 3); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	if len(store.inserts) != 0 || len(store.updates) != 0 {
		t.Fatalf("expected all marks skipped, got inserts=%d updates=%d", len(store.inserts), len(store.updates))
	}
}
