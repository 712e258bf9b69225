package handlers

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/srikarv/eduinsights/internal/cache"
	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/internal/scraper"
	"github.com/srikarv/eduinsights/pkg/config"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// ExtractionHandler exposes the extraction engine: subject discovery,
// job submission and progress reads.
type ExtractionHandler struct {
	extractionRepo *repository.ExtractionRepository
	domainRepo     *repository.DomainRepository
	discoverer     *scraper.SubjectDiscoverer
	coordinator    *scraper.Coordinator
	cacheService   *cache.Service
	robotsChecker  *utils.RobotsChecker
	cfg            *config.ScraperConfig
	logger         *logger.Logger

	// Cancellation handles for jobs currently running in this process.
	mu      sync.Mutex
	running map[int64]context.CancelFunc

	// preflight client; the portal serves an expired certificate chain,
	// so certificate verification is off for this client.
	httpClient *http.Client
}

// NewExtractionHandler creates a new extraction handler
func NewExtractionHandler(
	extractionRepo *repository.ExtractionRepository,
	domainRepo *repository.DomainRepository,
	discoverer *scraper.SubjectDiscoverer,
	coordinator *scraper.Coordinator,
	cacheService *cache.Service,
	cfg *config.ScraperConfig,
	log *logger.Logger,
) *ExtractionHandler {
	return &ExtractionHandler{
		extractionRepo: extractionRepo,
		domainRepo:     domainRepo,
		discoverer:     discoverer,
		coordinator:    coordinator,
		cacheService:   cacheService,
		robotsChecker:  utils.NewRobotsChecker(cfg.UserAgent),
		cfg:            cfg,
		logger:         log.WithComponent("extraction-handler"),
		running:        make(map[int64]context.CancelFunc),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}

// checkURL verifies the result URL parses and answers 2xx.
func (h *ExtractionHandler) checkURL(rawURL string) bool {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	resp, err := h.httpClient.Get(rawURL)
	if err != nil {
		h.logger.WithError(err).Debugf("Preflight failed for %s", rawURL)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

type identifySubjectsRequest struct {
	USN       string `json:"usn"`
	ResultURL string `json:"result_url"`
}

// IdentifySubjects handles POST /extractions/identify_subjects/:batch_id
func (h *ExtractionHandler) IdentifySubjects(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	batchID, err := c.ParamsInt("batch_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_BATCH_ID", "Batch id must be an integer", err.Error(), requestID),
		)
	}

	var req identifySubjectsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	if req.USN != "" {
		if err := utils.ValidateUSN(req.USN); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(
				models.NewErrorResponse("INVALID_USN", "Malformed USN", err.Error(), requestID),
			)
		}
	}

	if !h.checkURL(req.ResultURL) {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_URL", "Result URL is unreachable or malformed", "", requestID),
		)
	}

	batch, err := h.domainRepo.BatchByID(c.Context(), int64(batchID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("BATCH_NOT_FOUND", "Batch not found", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load batch", err.Error(), requestID),
		)
	}

	subjects, err := h.discoverer.IdentifySubjects(c.Context(), batch, req.ResultURL, req.USN)
	if err != nil {
		var scrapeErr *scraper.ScrapeError
		if errors.As(err, &scrapeErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(
				models.NewErrorResponse("SCRAPE_FAILED", "Error in scraping results", scrapeErr.Error(), requestID),
			)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("SCRAPE_FAILED", "Failed to identify subjects", err.Error(), requestID),
		)
	}

	return c.JSON(models.NewSuccessResponse(subjects, requestID))
}

type addSubjectRequest struct {
	SubCode string `json:"sub_code"`
	SubName string `json:"sub_name"`
	Credits int    `json:"credits"`
}

// AddSubjects handles POST /extractions/add_subjects/:batch_id
func (h *ExtractionHandler) AddSubjects(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	batchID, err := c.ParamsInt("batch_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_BATCH_ID", "Batch id must be an integer", err.Error(), requestID),
		)
	}

	var req []addSubjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	if _, err := h.domainRepo.BatchByID(c.Context(), int64(batchID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(
				models.NewErrorResponse("BATCH_NOT_FOUND", "Batch not found", "", requestID),
			)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load batch", err.Error(), requestID),
		)
	}

	semester, err := h.domainRepo.CurrentSemester(c.Context(), int64(batchID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("SEMESTER_NOT_FOUND", "Batch has no current semester", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load semester", err.Error(), requestID),
		)
	}

	subjects := make([]models.Subject, 0, len(req))
	for _, s := range req {
		if s.Credits == 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(
				models.NewErrorResponse("INVALID_CREDITS", "Credits for subject "+s.SubCode+" is 0", "", requestID),
			)
		}
		subjects = append(subjects, models.Subject{
			SemID:   semester.SemID,
			SubCode: s.SubCode,
			SubName: s.SubName,
			Credits: s.Credits,
		})
	}

	created, err := h.domainRepo.InsertSubjects(c.Context(), subjects)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(
			models.NewErrorResponse("SUBJECTS_NOT_ADDED", "Failed to add subjects", err.Error(), requestID),
		)
	}

	return c.JSON(models.NewSuccessResponse(created, requestID))
}

// StartScrape handles POST /extractions/scraper/:section_id?result_url=...
func (h *ExtractionHandler) StartScrape(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	sectionID, err := c.ParamsInt("section_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SECTION_ID", "Section id must be an integer", err.Error(), requestID),
		)
	}

	resultURL := c.Query("result_url")
	if !h.checkURL(resultURL) {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_URL", "Result URL is unreachable or malformed", "", requestID),
		)
	}

	if h.cfg.EnableRobotsCheck {
		allowed, err := h.robotsChecker.IsAllowed(resultURL)
		if err != nil || !allowed {
			return c.Status(fiber.StatusBadRequest).JSON(
				models.NewErrorResponse("ROBOTS_DISALLOWED", "Result URL is disallowed by robots.txt", "", requestID),
			)
		}
	}

	section, err := h.domainRepo.SectionByID(c.Context(), int64(sectionID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("SECTION_NOT_FOUND", "Section not found", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load section", err.Error(), requestID),
		)
	}

	semester, err := h.domainRepo.CurrentSemester(c.Context(), section.BatchID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("SEMESTER_NOT_FOUND", "Batch has no current semester", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load semester", err.Error(), requestID),
		)
	}

	prefix, lo, err := utils.SplitUSN(section.StartUSN)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SECTION_RANGE", "Section start USN is malformed", err.Error(), requestID),
		)
	}
	_, hi, err := utils.SplitUSN(section.EndUSN)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SECTION_RANGE", "Section end USN is malformed", err.Error(), requestID),
		)
	}
	totalUSNs := hi - lo + 1

	extractionID, err := h.extractionRepo.CreateExtraction(c.Context(), section.SectionID, semester.SemID, totalUSNs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create extraction", err.Error(), requestID),
		)
	}
	invalidID, err := h.extractionRepo.CreateExtractionInvalid(c.Context(), extractionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create extraction invalid record", err.Error(), requestID),
		)
	}

	job := scraper.Job{
		ExtractionID: extractionID,
		InvalidID:    invalidID,
		SectionID:    section.SectionID,
		SemID:        semester.SemID,
		ResultURL:    resultURL,
		PrefixUSN:    prefix,
		StartSuffix:  lo,
		EndSuffix:    hi,
	}

	traceID := uuid.NewString()

	jobCtx, cancel := context.WithCancel(context.Background())
	h.mu.Lock()
	h.running[extractionID] = cancel
	h.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			h.mu.Lock()
			delete(h.running, extractionID)
			h.mu.Unlock()
			h.cacheService.Delete(context.Background(), cache.ExtractionKey(extractionID))
		}()
		h.coordinator.Run(jobCtx, job)
	}()

	h.logger.Infof("Dispatched extraction %d (trace %s): section=%d usns=%d", extractionID, traceID, section.SectionID, totalUSNs)

	return c.JSON(models.NewSuccessResponse(fiber.Map{
		"message":               "Scraping in progress",
		"extraction_id":         extractionID,
		"extraction_invalid_id": invalidID,
		"trace_id":              traceID,
		"start_usn":             section.StartUSN,
		"end_usn":               section.EndUSN,
		"number_usns":           totalUSNs,
	}, requestID))
}

// GetExtraction handles GET /extractions/:id
func (h *ExtractionHandler) GetExtraction(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	extractionID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_EXTRACTION_ID", "Extraction id must be an integer", err.Error(), requestID),
		)
	}

	key := cache.ExtractionKey(int64(extractionID))
	var cached models.Extraction
	if h.cacheService.IsAvailable() {
		if err := h.cacheService.Get(c.Context(), key, &cached); err == nil {
			return c.JSON(models.NewSuccessResponse(cached, requestID))
		}
	}

	extraction, err := h.extractionRepo.GetExtraction(c.Context(), int64(extractionID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("EXTRACTION_NOT_FOUND", "Extraction not found", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load extraction", err.Error(), requestID),
		)
	}

	// Only terminal snapshots are cached; running counters must stay live.
	if extraction.Completed || extraction.Failed {
		if err := h.cacheService.Set(c.Context(), key, extraction); err != nil {
			h.logger.WithError(err).Debug("Failed to cache extraction snapshot")
		}
	}

	return c.JSON(models.NewSuccessResponse(extraction, requestID))
}

// GetExtractionInvalids handles GET /extractions/:id/invalids
func (h *ExtractionHandler) GetExtractionInvalids(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	extractionID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_EXTRACTION_ID", "Extraction id must be an integer", err.Error(), requestID),
		)
	}

	inv, err := h.extractionRepo.GetExtractionInvalid(c.Context(), int64(extractionID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("EXTRACTION_NOT_FOUND", "Extraction not found", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load invalid record", err.Error(), requestID),
		)
	}

	return c.JSON(models.NewSuccessResponse(inv, requestID))
}

// CancelExtraction handles POST /extractions/:id/cancel. Only jobs
// running in this process can be cancelled; the in-flight USN
// finishes before the coordinator stops.
func (h *ExtractionHandler) CancelExtraction(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	extractionID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_EXTRACTION_ID", "Extraction id must be an integer", err.Error(), requestID),
		)
	}

	h.mu.Lock()
	cancel, ok := h.running[int64(extractionID)]
	h.mu.Unlock()

	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("EXTRACTION_NOT_RUNNING", "No running extraction with that id", "", requestID),
		)
	}

	cancel()
	h.logger.Warnf("Cancellation requested for extraction %d", extractionID)

	return c.JSON(models.NewSuccessResponse(fiber.Map{
		"message":       "Cancellation requested",
		"extraction_id": extractionID,
	}, requestID))
}
