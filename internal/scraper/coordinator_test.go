package scraper

import (
	"context"
	"testing"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/internal/scraper/browser"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// fakeDriver hands out nil sessions; nothing in the fakes touches a
// real browser.
type fakeDriver struct {
	initialized int
	quits       int
}

func (f *fakeDriver) Initialize() (*browser.Session, error) {
	f.initialized++
	return &browser.Session{}, nil
}

func (f *fakeDriver) Quit(*browser.Session) { f.quits++ }

// fakeScraper replays a scripted status code (and record) per USN.
type fakeScraper struct {
	codes   map[string]int
	records map[string]*models.StudentRecord
	calls   []string
}

func (f *fakeScraper) Scrape(ctx context.Context, sess *browser.Session, usn, resultURL string) (*models.StudentRecord, int, *browser.Session) {
	f.calls = append(f.calls, usn)
	code, ok := f.codes[usn]
	if !ok {
		code = StatusSuccess
	}
	if !Succeeded(code) {
		return nil, code, sess
	}
	rec := f.records[usn]
	if rec == nil {
		rec = &models.StudentRecord{USN: usn, Name: " STUDENT"}
	}
	return rec, code, sess
}

// fakeProgress records every flush delta and the final USN lists.
type fakeProgress struct {
	flushes  []models.ProgressDelta
	invalid  []string
	captcha  []string
	timeout  []string
	failed   bool
	appended bool
}

func (f *fakeProgress) FlushProgress(ctx context.Context, extractionID int64, delta models.ProgressDelta) error {
	f.flushes = append(f.flushes, delta)
	return nil
}

func (f *fakeProgress) AppendInvalidUSNs(ctx context.Context, invalidID int64, invalid, captcha, timeout []string) error {
	f.appended = true
	f.invalid = invalid
	f.captcha = captcha
	f.timeout = timeout
	return nil
}

func (f *fakeProgress) MarkFailed(ctx context.Context, extractionID int64) error {
	f.failed = true
	return nil
}

// fakeStudents serves student rows from a map keyed by USN.
type fakeStudents struct {
	rows        map[string]*models.Student
	deactivated []int64
}

func (f *fakeStudents) StudentByUSN(ctx context.Context, usn string, sectionID int64) (*models.Student, error) {
	s, ok := f.rows[usn]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeStudents) DeactivateStudent(ctx context.Context, studID int64) error {
	f.deactivated = append(f.deactivated, studID)
	return nil
}

type fakeReconciler struct {
	reconciled []string
}

func (f *fakeReconciler) Reconcile(ctx context.Context, rec *models.StudentRecord, student *models.Student, sectionID, semID int64) error {
	f.reconciled = append(f.reconciled, rec.USN)
	return nil
}

func activeStudents(prefix string, from, to int) map[string]*models.Student {
	rows := make(map[string]*models.Student)
	id := int64(1)
	for n := from; n <= to; n++ {
		usn := utils.FormatUSN(prefix, n)
		rows[usn] = &models.Student{StudID: id, USN: usn, StudName: "STUDENT", Active: true}
		id++
	}
	return rows
}

func newTestCoordinator(s Scraper, p ProgressStore, st StudentStore, r Reconciler) (*Coordinator, *fakeDriver) {
	drv := &fakeDriver{}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	c := NewCoordinator(s, drv, p, st, r, CoordinatorConfig{FlushEvery: 5}, log)
	return c, drv
}

func TestRunSingleSuccess(t *testing.T) {
	scr := &fakeScraper{codes: map[string]int{}, records: map[string]*models.StudentRecord{}}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 1)}
	recon := &fakeReconciler{}

	c, drv := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		ResultURL: "https://results.example", PrefixUSN: "1OX21CS",
		StartSuffix: 1, EndSuffix: 1,
	})

	if len(prog.flushes) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(prog.flushes))
	}
	d := prog.flushes[0]
	if d.Count != 1 || d.Invalids != 0 || d.Captchas != 0 || d.Timeouts != 0 || d.Reattempts != 0 {
		t.Fatalf("unexpected flush delta: %+v", d)
	}
	if len(recon.reconciled) != 1 || recon.reconciled[0] != "1OX21CS001" {
		t.Fatalf("expected 1OX21CS001 reconciled, got %v", recon.reconciled)
	}
	if prog.failed {
		t.Fatal("job should not be failed")
	}
	if drv.initialized != 1 || drv.quits != 1 {
		t.Fatalf("expected one session init and quit, got %d/%d", drv.initialized, drv.quits)
	}
}

func TestRunInvalidUSNDeactivatesStudent(t *testing.T) {
	scr := &fakeScraper{codes: map[string]int{"1OX21CS002": StatusInvalidUSN}}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 2)}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 2,
	})

	if len(prog.flushes) != 1 {
		t.Fatalf("expected 1 flush, got %d", len(prog.flushes))
	}
	d := prog.flushes[0]
	if d.Count != 2 || d.Invalids != 1 {
		t.Fatalf("unexpected flush delta: %+v", d)
	}
	if len(prog.invalid) != 1 || prog.invalid[0] != "1OX21CS002" {
		t.Fatalf("expected invalid list [1OX21CS002], got %v", prog.invalid)
	}
	if len(studs.deactivated) != 1 {
		t.Fatalf("expected 1 deactivation, got %d", len(studs.deactivated))
	}
	if len(recon.reconciled) != 1 {
		t.Fatalf("expected only the valid USN reconciled, got %v", recon.reconciled)
	}
}

func TestRunCaptchaExhaustedCountsReattempts(t *testing.T) {
	scr := &fakeScraper{codes: map[string]int{"1OX21CS001": StatusCaptchaExhausted}}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 1)}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 1,
	})

	d := prog.flushes[0]
	if d.Captchas != 1 || d.Reattempts != 3 {
		t.Fatalf("expected captchas=1 reattempts=3, got %+v", d)
	}
	if len(prog.captcha) != 1 || prog.captcha[0] != "1OX21CS001" {
		t.Fatalf("expected captcha list [1OX21CS001], got %v", prog.captcha)
	}
	if len(recon.reconciled) != 0 {
		t.Fatal("no record should have been reconciled")
	}
}

func TestRunSoftRetriesAddToReattempts(t *testing.T) {
	scr := &fakeScraper{codes: map[string]int{
		"1OX21CS001": 12, // success after 2 captcha refreshes
		"1OX21CS002": 21, // success after 1 timeout retry
	}}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 2)}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 2,
	})

	d := prog.flushes[0]
	if d.Count != 2 || d.Reattempts != 3 {
		t.Fatalf("expected count=2 reattempts=3, got %+v", d)
	}
	if len(recon.reconciled) != 2 {
		t.Fatalf("both USNs should reconcile, got %v", recon.reconciled)
	}
}

func TestRunInactiveStudentSkippedWithoutScrape(t *testing.T) {
	rows := activeStudents("1OX21CS", 1, 2)
	rows["1OX21CS001"].Active = false

	scr := &fakeScraper{}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: rows}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 2,
	})

	if len(scr.calls) != 1 || scr.calls[0] != "1OX21CS002" {
		t.Fatalf("expected only active USN scraped, got %v", scr.calls)
	}
	d := prog.flushes[0]
	if d.Invalids != 1 {
		t.Fatalf("inactive student should count as invalid: %+v", d)
	}
	if len(prog.invalid) != 1 || prog.invalid[0] != "1OX21CS001" {
		t.Fatalf("expected invalid list [1OX21CS001], got %v", prog.invalid)
	}
}

func TestRunFlushCadence(t *testing.T) {
	scr := &fakeScraper{}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 12)}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 12,
	})

	// 12 USNs with a cadence of 5: flushes carry 5, 5, then 2.
	if len(prog.flushes) != 3 {
		t.Fatalf("expected 3 flushes, got %d", len(prog.flushes))
	}
	for i, want := range []int{5, 5, 2} {
		if prog.flushes[i].Count != want {
			t.Fatalf("flush %d carried count %d, want %d", i, prog.flushes[i].Count, want)
		}
	}
}

func TestRunCancelledMarksFailed(t *testing.T) {
	scr := &fakeScraper{}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: activeStudents("1OX21CS", 1, 10)}
	recon := &fakeReconciler{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, drv := newTestCoordinator(scr, prog, studs, recon)
	c.Run(ctx, Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 10,
	})

	if !prog.failed {
		t.Fatal("cancelled job must be marked failed")
	}
	if !prog.appended {
		t.Fatal("USN lists must still be written on cancellation")
	}
	if drv.quits != 1 {
		t.Fatal("browser session must be torn down on cancellation")
	}
	if len(scr.calls) != 0 {
		t.Fatalf("no USN should be scraped after cancellation, got %v", scr.calls)
	}
}

func TestRunUnknownStudentCountsInvalid(t *testing.T) {
	scr := &fakeScraper{}
	prog := &fakeProgress{}
	studs := &fakeStudents{rows: map[string]*models.Student{}}
	recon := &fakeReconciler{}

	c, _ := newTestCoordinator(scr, prog, studs, recon)
	c.Run(context.Background(), Job{
		ExtractionID: 1, InvalidID: 1, SectionID: 7, SemID: 3,
		PrefixUSN: "1OX21CS", StartSuffix: 1, EndSuffix: 1,
	})

	d := prog.flushes[0]
	if d.Count != 1 || d.Invalids != 1 {
		t.Fatalf("missing student row should count invalid: %+v", d)
	}
	if len(scr.calls) != 0 {
		t.Fatal("missing student row should not be scraped")
	}
}
