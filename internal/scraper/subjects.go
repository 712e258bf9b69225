package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// ScrapeError carries the terminal status code of a failed scrape so
// the gateway can classify its response.
type ScrapeError struct {
	Code int
}

func (e *ScrapeError) Error() string {
	return FailureMessage(e.Code)
}

// SubjectDiscoverer enumerates the subject codes a batch's marks will
// reference by scraping one representative USN.
type SubjectDiscoverer struct {
	scraper Scraper
	driver  SessionDriver
	logger  *logger.Logger
}

// NewSubjectDiscoverer creates a subject discoverer
func NewSubjectDiscoverer(scraper Scraper, driver SessionDriver, log *logger.Logger) *SubjectDiscoverer {
	return &SubjectDiscoverer{
		scraper: scraper,
		driver:  driver,
		logger:  log.WithComponent("subject-discoverer"),
	}
}

// IdentifySubjects scrapes one USN of the batch and returns the
// subjects found on its result page, credits left at zero for the
// caller to fill. When usn is empty a representative is drawn
// uniformly from the batch's suffix range.
func (d *SubjectDiscoverer) IdentifySubjects(ctx context.Context, batch *models.Batch, resultURL, usn string) ([]models.Subject, error) {
	if usn == "" {
		var err error
		usn, err = randomUSNInRange(batch.StartUSN, batch.EndUSN)
		if err != nil {
			return nil, err
		}
		d.logger.Debugf("Picked representative USN %s for batch %d", usn, batch.BatchID)
	}

	sess, err := d.driver.Initialize()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize browser session: %w", err)
	}
	defer func() { d.driver.Quit(sess) }()

	rec, code, sess := d.scraper.Scrape(ctx, sess, usn, resultURL)
	if !Succeeded(code) {
		return nil, &ScrapeError{Code: code}
	}

	subjects := make([]models.Subject, 0, len(rec.Marks))
	for _, m := range rec.Marks {
		subjects = append(subjects, models.Subject{
			SubCode: m.SubCode,
			SubName: m.SubName,
			Credits: 0,
		})
	}

	d.logger.Infof("Identified %d subjects from %s", len(subjects), usn)
	return subjects, nil
}

// randomUSNInRange picks a USN uniformly from the inclusive suffix
// range shared by the two bounds.
func randomUSNInRange(startUSN, endUSN string) (string, error) {
	prefix, lo, err := utils.SplitUSN(startUSN)
	if err != nil {
		return "", fmt.Errorf("bad batch start usn: %w", err)
	}
	_, hi, err := utils.SplitUSN(endUSN)
	if err != nil {
		return "", fmt.Errorf("bad batch end usn: %w", err)
	}
	if hi < lo {
		return "", fmt.Errorf("batch usn range inverted: %d..%d", lo, hi)
	}

	return utils.FormatUSN(prefix, lo+rand.IntN(hi-lo+1)), nil
}
