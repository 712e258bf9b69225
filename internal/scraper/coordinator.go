package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/internal/scraper/browser"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// Scraper drives one form submission for one USN.
type Scraper interface {
	Scrape(ctx context.Context, sess *browser.Session, usn, resultURL string) (*models.StudentRecord, int, *browser.Session)
}

// SessionDriver manages browser session lifecycle for a job.
type SessionDriver interface {
	Initialize() (*browser.Session, error)
	Quit(*browser.Session)
}

// ProgressStore persists job counters and failure lists.
type ProgressStore interface {
	FlushProgress(ctx context.Context, extractionID int64, delta models.ProgressDelta) error
	AppendInvalidUSNs(ctx context.Context, invalidID int64, invalid, captcha, timeout []string) error
	MarkFailed(ctx context.Context, extractionID int64) error
}

// StudentStore loads and deactivates student rows.
type StudentStore interface {
	StudentByUSN(ctx context.Context, usn string, sectionID int64) (*models.Student, error)
	DeactivateStudent(ctx context.Context, studID int64) error
}

// Reconciler folds a scraped record into the domain store.
type Reconciler interface {
	Reconcile(ctx context.Context, rec *models.StudentRecord, student *models.Student, sectionID, semID int64) error
}

// CoordinatorConfig tunes the per-job iteration policy.
type CoordinatorConfig struct {
	FlushEvery         int
	MaxCaptchaAttempts int
	MaxTimeoutAttempts int
}

// Job identifies one extraction run over a section's USN range.
type Job struct {
	ExtractionID int64
	InvalidID    int64
	SectionID    int64
	SemID        int64
	ResultURL    string
	PrefixUSN    string
	StartSuffix  int
	EndSuffix    int
}

// Coordinator iterates a job's USN range over one exclusively-owned
// browser session, classifying every outcome and batching progress
// flushes. It is strictly serial: the captcha session cannot serve
// two forms at once.
type Coordinator struct {
	scraper  Scraper
	driver   SessionDriver
	progress ProgressStore
	students StudentStore
	recon    Reconciler
	cfg      CoordinatorConfig
	logger   *logger.Logger
}

// NewCoordinator creates a job coordinator
func NewCoordinator(
	scraper Scraper,
	driver SessionDriver,
	progress ProgressStore,
	students StudentStore,
	recon Reconciler,
	cfg CoordinatorConfig,
	log *logger.Logger,
) *Coordinator {
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = 5
	}
	if cfg.MaxCaptchaAttempts <= 0 {
		cfg.MaxCaptchaAttempts = MaxCaptchaAttempts
	}
	if cfg.MaxTimeoutAttempts <= 0 {
		cfg.MaxTimeoutAttempts = MaxTimeoutAttempts
	}
	return &Coordinator{
		scraper:  scraper,
		driver:   driver,
		progress: progress,
		students: students,
		recon:    recon,
		cfg:      cfg,
		logger:   log.WithComponent("job-coordinator"),
	}
}

// Run executes the job to completion or cancellation. Per-USN
// failures never abort the run; only cancellation, or a browser
// session that fails to start, marks it failed.
func (c *Coordinator) Run(ctx context.Context, job Job) {
	log := c.logger.WithJob(job.ExtractionID)

	sess, err := c.driver.Initialize()
	if err != nil {
		log.WithError(err).Error("Failed to initialize browser session")
		c.markFailed(job)
		return
	}
	defer func() { c.driver.Quit(sess) }()

	// Cancellation stops iteration, not persistence: the final flush
	// and the failure mark must land even on a dead context. The
	// in-flight scrape runs on it too, so it completes or times out.
	dbCtx := context.WithoutCancel(ctx)

	var delta models.ProgressDelta
	var invalidUSNs, captchaUSNs, timeoutUSNs []string
	tStart := time.Now()

	flush := func() {
		delta.Elapsed = time.Since(tStart).Seconds()
		if err := c.progress.FlushProgress(dbCtx, job.ExtractionID, delta); err != nil {
			log.WithError(err).Error("Failed to flush progress")
		}
		delta = models.ProgressDelta{}
		tStart = time.Now()
	}

	log.Infof("Starting extraction: section=%d sem=%d range=%s%03d..%s%03d",
		job.SectionID, job.SemID, job.PrefixUSN, job.StartSuffix, job.PrefixUSN, job.EndSuffix)

	cancelled := false
	for n := job.StartSuffix; n <= job.EndSuffix; n++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		if delta.Count == c.cfg.FlushEvery {
			flush()
		}

		usn := utils.FormatUSN(job.PrefixUSN, n)
		delta.Count++

		student, err := c.students.StudentByUSN(dbCtx, usn, job.SectionID)
		if errors.Is(err, repository.ErrNotFound) {
			// No row to attach marks to; treat like a portal-invalid USN.
			log.Warnf("No student row for %s in section %d", usn, job.SectionID)
			delta.Invalids++
			invalidUSNs = append(invalidUSNs, usn)
			continue
		}
		if err != nil {
			log.WithError(err).Errorf("Failed to load student %s", usn)
			continue
		}

		if !student.Active {
			delta.Invalids++
			invalidUSNs = append(invalidUSNs, usn)
			continue
		}

		var rec *models.StudentRecord
		var code int
		rec, code, sess = c.scraper.Scrape(dbCtx, sess, usn, job.ResultURL)

		switch {
		case Succeeded(code):
			delta.Reattempts += CaptchaRetries(code) + TimeoutRetries(code)
			if err := c.recon.Reconcile(dbCtx, rec, student, job.SectionID, job.SemID); err != nil {
				log.WithError(err).Errorf("Failed to reconcile marks for %s", usn)
			}

		case code == StatusInvalidUSN:
			delta.Invalids++
			invalidUSNs = append(invalidUSNs, usn)
			if err := c.students.DeactivateStudent(dbCtx, student.StudID); err != nil {
				log.WithError(err).Errorf("Failed to deactivate student %s", usn)
			}

		case code == StatusCaptchaExhausted:
			delta.Captchas++
			delta.Reattempts += c.cfg.MaxCaptchaAttempts
			captchaUSNs = append(captchaUSNs, usn)

		case code == StatusTimeoutExhausted:
			delta.Timeouts++
			delta.Reattempts += c.cfg.MaxTimeoutAttempts
			timeoutUSNs = append(timeoutUSNs, usn)

		default:
			// DNS, refused, driver or unclassified errors: the USN is
			// abandoned but the job continues.
			delta.Reattempts += c.cfg.MaxTimeoutAttempts
		}
	}

	if delta.Count > 0 {
		flush()
	}

	if err := c.progress.AppendInvalidUSNs(dbCtx, job.InvalidID, invalidUSNs, captchaUSNs, timeoutUSNs); err != nil {
		log.WithError(err).Error("Failed to record invalid USN lists")
	}

	if cancelled {
		log.Warn("Extraction cancelled")
		c.markFailed(job)
		return
	}

	log.Infof("Extraction finished: invalid=%d captcha=%d timeout=%d",
		len(invalidUSNs), len(captchaUSNs), len(timeoutUSNs))
}

func (c *Coordinator) markFailed(job Job) {
	// The run context may already be cancelled; the failure mark must
	// still land.
	if err := c.progress.MarkFailed(context.Background(), job.ExtractionID); err != nil {
		c.logger.WithError(err).Errorf("Failed to mark extraction %d failed", job.ExtractionID)
	}
}
