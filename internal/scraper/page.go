package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/srikarv/eduinsights/internal/captcha"
	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/scraper/browser"
	"github.com/srikarv/eduinsights/pkg/logger"
)

// Portal element locations. The results site is not ours; these track
// its markup and break when it changes.
const (
	captchaImageXPath   = `//*[@id="raj"]/div[2]/div[2]/img`
	captchaRefreshXPath = `/html/body/div[2]/div[1]/div[2]/div/div[2]/form/div/div[2]/div[2]/div[3]/p/a`
	detailsCellXPath    = `/html/body/div[2]/div[2]/div[2]/div/div/div[2]/div[1]/div/div/div[1]/div/table/tbody/tr[1]/td[2]`

	usnFieldSelector     = `input[name="lns"]`
	captchaFieldSelector = `input[name="captchacode"]`
	submitSelector       = `#submit`
)

// Alert fragments the portal raises after a submission.
const (
	alertInvalidUSN = "not available or Invalid"
	alertBadCaptcha = "Invalid captcha code"
	alertCooldown   = "check website after 2 hour"
)

// alertWait bounds how long we watch for a dialog after submitting
// before assuming the details table is coming.
const alertWait = time.Second

// CaptchaSolver turns a captcha screenshot into text.
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte, tag string) (string, error)
}

// Options tune the per-call waits and retry caps of the page scraper.
type Options struct {
	ElementWait  time.Duration
	DetailsWait  time.Duration
	CooldownWait time.Duration
	RefusedWait  time.Duration

	MaxCaptchaAttempts int
	MaxTimeoutAttempts int
	MaxRefusedAttempts int
}

// DefaultOptions returns the waits and caps the portal is known to
// tolerate.
func DefaultOptions() Options {
	return Options{
		ElementWait:        10 * time.Second,
		DetailsWait:        4 * time.Second,
		CooldownWait:       10 * time.Second,
		RefusedWait:        5 * time.Second,
		MaxCaptchaAttempts: MaxCaptchaAttempts,
		MaxTimeoutAttempts: MaxTimeoutAttempts,
		MaxRefusedAttempts: MaxRefusedAttempts,
	}
}

// PageScraper drives one captcha-gated form submission per call.
type PageScraper struct {
	solver CaptchaSolver
	driver *browser.Driver
	opts   Options
	logger *logger.Logger
}

// NewPageScraper creates a page scraper. driver is used only for
// session resets demanded by the portal (cooldown, connection refused).
func NewPageScraper(solver CaptchaSolver, driver *browser.Driver, opts Options, log *logger.Logger) *PageScraper {
	return &PageScraper{
		solver: solver,
		driver: driver,
		opts:   opts,
		logger: log.WithComponent("page-scraper"),
	}
}

type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeInvalidUSN
	outcomeBadCaptcha
	outcomeCooldown
)

// errParse marks failures in our own extraction logic, as opposed to
// driver-level errors.
var errParse = errors.New("result page parse failure")

// Scrape submits the result form for one USN and classifies the
// outcome into the status codes documented in status.go. The returned
// session replaces the caller's: cooldown and connection-refused
// handling reset the browser mid-call.
func (p *PageScraper) Scrape(ctx context.Context, sess *browser.Session, usn, resultURL string) (*models.StudentRecord, int, *browser.Session) {
	captchaAttempts := 0
	timeoutRetries := 0
	refusedRetries := 0

	for {
		if ctx.Err() != nil {
			return nil, StatusUnknownError, sess
		}

		rec, outcome, err := p.attempt(ctx, sess, usn, resultURL, &captchaAttempts)
		if err == nil {
			switch outcome {
			case outcomeSuccess:
				return rec, successCode(captchaAttempts, timeoutRetries), sess
			case outcomeInvalidUSN:
				p.logger.Debugf("Invalid USN %s", usn)
				return nil, StatusInvalidUSN, sess
			case outcomeBadCaptcha:
				captchaAttempts++
				if captchaAttempts >= p.opts.MaxCaptchaAttempts {
					return nil, StatusCaptchaExhausted, sess
				}
				p.logger.Debugf("Captcha rejected for %s, reattempting (%d/%d)", usn, captchaAttempts, p.opts.MaxCaptchaAttempts)
				continue
			case outcomeCooldown:
				p.logger.Warnf("Portal cooldown hit for %s, resetting session after %v", usn, p.opts.CooldownWait)
				time.Sleep(p.opts.CooldownWait)
				sess = p.reset(sess)
				continue
			}
		}

		switch {
		case errors.Is(err, captcha.ErrService):
			captchaAttempts++
			if captchaAttempts >= p.opts.MaxCaptchaAttempts {
				return nil, StatusCaptchaExhausted, sess
			}
			p.logger.WithError(err).Warnf("Captcha service failed for %s, reattempting", usn)
			continue

		case strings.Contains(err.Error(), "ERR_CONNECTION_TIMED_OUT"):
			timeoutRetries++
			if timeoutRetries >= p.opts.MaxTimeoutAttempts {
				return nil, StatusTimeoutExhausted, sess
			}
			p.logger.Debugf("Connection timed out for %s, retry %d/%d", usn, timeoutRetries, p.opts.MaxTimeoutAttempts)
			continue

		case strings.Contains(err.Error(), "ERR_NAME_NOT_RESOLVED"):
			p.logger.WithError(err).Error("DNS resolution failed")
			return nil, StatusDNSFailure, sess

		case strings.Contains(err.Error(), "ERR_CONNECTION_REFUSED"):
			refusedRetries++
			if refusedRetries >= p.opts.MaxRefusedAttempts {
				return nil, StatusRefusedExhausted, sess
			}
			p.logger.Warnf("Connection refused for %s, resetting session after %v", usn, p.opts.RefusedWait)
			time.Sleep(p.opts.RefusedWait)
			sess = p.reset(sess)
			continue

		case errors.Is(err, errParse):
			p.logger.WithError(err).Errorf("Failed to parse result page for %s", usn)
			return nil, StatusUnknownError, sess

		default:
			p.logger.WithError(err).Errorf("Driver error scraping %s", usn)
			return nil, StatusDriverError, sess
		}
	}
}

// attempt runs one full form submission: navigate, solve, fill,
// submit, then read either the portal alert or the details table.
func (p *PageScraper) attempt(ctx context.Context, sess *browser.Session, usn, resultURL string, captchaAttempts *int) (*models.StudentRecord, attemptOutcome, error) {
	page, err := sess.Browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	// The portal reports every outcome through JS dialogs; capture the
	// first one raised after submission.
	dialogs := make(chan *proto.PageJavascriptDialogOpening, 1)
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) bool {
		select {
		case dialogs <- e:
		default:
		}
		return true
	})()

	if err := page.Timeout(p.opts.ElementWait).Navigate(resultURL); err != nil {
		return nil, 0, err
	}
	if err := page.Timeout(p.opts.ElementWait).WaitLoad(); err != nil {
		return nil, 0, err
	}

	captchaText, err := p.solveCaptcha(ctx, page, usn, captchaAttempts)
	if err != nil {
		return nil, 0, err
	}

	if err := p.fillAndSubmit(page, usn, captchaText); err != nil {
		return nil, 0, err
	}

	select {
	case e := <-dialogs:
		if err := (proto.PageHandleJavaScriptDialog{Accept: true}).Call(page); err != nil {
			return nil, 0, fmt.Errorf("failed to accept alert: %w", err)
		}
		switch {
		case strings.Contains(e.Message, alertInvalidUSN):
			return nil, outcomeInvalidUSN, nil
		case strings.Contains(e.Message, alertBadCaptcha):
			return nil, outcomeBadCaptcha, nil
		case strings.Contains(e.Message, alertCooldown):
			return nil, outcomeCooldown, nil
		default:
			return nil, 0, fmt.Errorf("unexpected portal alert: %s", e.Message)
		}
	case <-time.After(alertWait):
	}

	if _, err := page.Timeout(p.opts.DetailsWait).ElementX(detailsCellXPath); err != nil {
		return nil, 0, fmt.Errorf("details table did not appear: %w", err)
	}

	pageHTML, err := page.HTML()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read page HTML: %w", err)
	}

	rec, err := parseResultPage(pageHTML)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errParse, err)
	}
	return rec, outcomeSuccess, nil
}

// solveCaptcha screenshots the captcha image and runs it through the
// OCR service. A solution of the wrong length is unusable: refresh the
// image, count one captcha attempt, and solve once more.
func (p *PageScraper) solveCaptcha(ctx context.Context, page *rod.Page, usn string, attempts *int) (string, error) {
	text, err := p.screenshotAndSolve(ctx, page, usn)
	if err != nil {
		return "", err
	}

	if len(text) != captcha.ExpectedLength {
		*attempts++
		p.logger.Debugf("Captcha text %q has wrong length, refreshing", text)

		refresh, err := page.Timeout(p.opts.DetailsWait).ElementX(captchaRefreshXPath)
		if err != nil {
			return "", fmt.Errorf("captcha refresh control not found: %w", err)
		}
		if err := refresh.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return "", fmt.Errorf("failed to click captcha refresh: %w", err)
		}

		text, err = p.screenshotAndSolve(ctx, page, usn)
		if err != nil {
			return "", err
		}
	}

	return text, nil
}

func (p *PageScraper) screenshotAndSolve(ctx context.Context, page *rod.Page, usn string) (string, error) {
	img, err := page.Timeout(p.opts.ElementWait).ElementX(captchaImageXPath)
	if err != nil {
		return "", fmt.Errorf("captcha image not found: %w", err)
	}

	shot, err := img.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return "", fmt.Errorf("failed to screenshot captcha: %w", err)
	}

	return p.solver.Solve(ctx, shot, usn)
}

func (p *PageScraper) fillAndSubmit(page *rod.Page, usn, captchaText string) error {
	usnField, err := page.Timeout(p.opts.ElementWait).Element(usnFieldSelector)
	if err != nil {
		return fmt.Errorf("usn field not found: %w", err)
	}
	if err := usnField.Input(usn); err != nil {
		return fmt.Errorf("failed to fill usn field: %w", err)
	}

	captchaField, err := page.Timeout(p.opts.ElementWait).Element(captchaFieldSelector)
	if err != nil {
		return fmt.Errorf("captcha field not found: %w", err)
	}
	if err := captchaField.Input(captchaText); err != nil {
		return fmt.Errorf("failed to fill captcha field: %w", err)
	}

	submit, err := page.Timeout(p.opts.ElementWait).Element(submitSelector)
	if err != nil {
		return fmt.Errorf("submit button not found: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click submit: %w", err)
	}
	return nil
}

// reset swaps the session for a fresh one, keeping the old one when
// relaunch fails so the next attempt can still try.
func (p *PageScraper) reset(sess *browser.Session) *browser.Session {
	fresh, err := p.driver.Reset(sess)
	if err != nil {
		p.logger.WithError(err).Error("Failed to reset browser session")
		return sess
	}
	return fresh
}
