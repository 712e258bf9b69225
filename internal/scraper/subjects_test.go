package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/pkg/logger"
)

func TestRandomUSNInRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		usn, err := randomUSNInRange("1OX21CS001", "1OX21CS063")
		if err != nil {
			t.Fatalf("randomUSNInRange returned error: %v", err)
		}
		if len(usn) != 10 || !strings.HasPrefix(usn, "1OX21CS") {
			t.Fatalf("malformed USN %q", usn)
		}
		suffix := usn[7:]
		if suffix < "001" || suffix > "063" {
			t.Fatalf("USN %q outside range 001..063", usn)
		}
	}
}

func TestRandomUSNInRangeSingleton(t *testing.T) {
	usn, err := randomUSNInRange("1OX21CS005", "1OX21CS005")
	if err != nil {
		t.Fatalf("randomUSNInRange returned error: %v", err)
	}
	if usn != "1OX21CS005" {
		t.Fatalf("expected the only USN in range, got %q", usn)
	}
}

func TestIdentifySubjects(t *testing.T) {
	scr := &fakeScraper{
		records: map[string]*models.StudentRecord{
			"1OX21CS004": {
				USN:  "1OX21CS004",
				Name: " BOB",
				Marks: []models.SubjectMark{
					{SubCode: "21CS51", SubName: "Computer Networks", Internal: 25, External: 40, Total: 65, Result: "P"},
					{SubCode: "21CS52", SubName: "Theory of Computation", Internal: 22, External: 30, Total: 52, Result: "P"},
				},
			},
		},
	}
	drv := &fakeDriver{}
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	d := NewSubjectDiscoverer(scr, drv, log)
	batch := &models.Batch{BatchID: 1, StartUSN: "1OX21CS001", EndUSN: "1OX21CS063"}

	subjects, err := d.IdentifySubjects(context.Background(), batch, "https://results.example", "1OX21CS004")
	if err != nil {
		t.Fatalf("IdentifySubjects returned error: %v", err)
	}

	if len(subjects) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(subjects))
	}
	if subjects[0].SubCode != "21CS51" || subjects[0].SubName != "Computer Networks" {
		t.Fatalf("unexpected first subject: %+v", subjects[0])
	}
	for _, s := range subjects {
		if s.Credits != 0 {
			t.Fatalf("credits must be left at 0 for the caller, got %d", s.Credits)
		}
	}
	if drv.quits != 1 {
		t.Fatal("discovery session must be torn down")
	}
}

func TestIdentifySubjectsFailureSurfacesCode(t *testing.T) {
	scr := &fakeScraper{codes: map[string]int{"1OX21CS004": StatusCaptchaExhausted}}
	drv := &fakeDriver{}
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	d := NewSubjectDiscoverer(scr, drv, log)
	batch := &models.Batch{BatchID: 1, StartUSN: "1OX21CS001", EndUSN: "1OX21CS063"}

	_, err := d.IdentifySubjects(context.Background(), batch, "https://results.example", "1OX21CS004")
	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("expected ScrapeError, got %v", err)
	}
	if scrapeErr.Code != StatusCaptchaExhausted {
		t.Fatalf("expected code %d, got %d", StatusCaptchaExhausted, scrapeErr.Code)
	}
}
