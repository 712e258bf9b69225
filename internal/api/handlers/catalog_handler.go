package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// CatalogHandler serves the thin CRUD surface over departments,
// batches, semesters, sections and subjects.
type CatalogHandler struct {
	catalogRepo *repository.CatalogRepository
	domainRepo  *repository.DomainRepository
	logger      *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogRepo *repository.CatalogRepository, domainRepo *repository.DomainRepository, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogRepo: catalogRepo,
		domainRepo:  domainRepo,
		logger:      log.WithComponent("catalog-handler"),
	}
}

// ListDepartments handles GET /departments
func (h *CatalogHandler) ListDepartments(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	departments, err := h.catalogRepo.ListDepartments(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list departments", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(departments, requestID))
}

// CreateDepartment handles POST /departments
func (h *CatalogHandler) CreateDepartment(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	var req struct {
		DeptName string `json:"dept_name"`
	}
	if err := c.BodyParser(&req); err != nil || req.DeptName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "dept_name is required", "", requestID),
		)
	}

	dept, err := h.catalogRepo.CreateDepartment(c.Context(), req.DeptName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create department", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(dept, requestID))
}

// DeleteDepartment handles DELETE /departments/:id
func (h *CatalogHandler) DeleteDepartment(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	deptID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_DEPT_ID", "Department id must be an integer", err.Error(), requestID),
		)
	}

	if err := h.catalogRepo.DeleteDepartment(c.Context(), int64(deptID)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(
				models.NewErrorResponse("DEPT_NOT_FOUND", "Department not found", "", requestID),
			)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to delete department", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(fiber.Map{"deleted": deptID}, requestID))
}

// ListBatches handles GET /departments/:id/batches
func (h *CatalogHandler) ListBatches(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	deptID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_DEPT_ID", "Department id must be an integer", err.Error(), requestID),
		)
	}

	batches, err := h.catalogRepo.ListBatches(c.Context(), int64(deptID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list batches", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(batches, requestID))
}

// CreateBatch handles POST /batches
func (h *CatalogHandler) CreateBatch(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	var req models.Batch
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	if err := utils.ValidateUSN(req.StartUSN); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_USN", "Malformed start_usn", err.Error(), requestID),
		)
	}
	if err := utils.ValidateUSN(req.EndUSN); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_USN", "Malformed end_usn", err.Error(), requestID),
		)
	}
	if req.StartUSN == req.EndUSN {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_RANGE", "start_usn and end_usn must differ", "", requestID),
		)
	}

	batch, err := h.catalogRepo.CreateBatch(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create batch", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(batch, requestID))
}

// ListSemesters handles GET /batches/:id/semesters
func (h *CatalogHandler) ListSemesters(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	batchID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_BATCH_ID", "Batch id must be an integer", err.Error(), requestID),
		)
	}

	semesters, err := h.catalogRepo.ListSemesters(c.Context(), int64(batchID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list semesters", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(semesters, requestID))
}

// CreateSemester handles POST /semesters
func (h *CatalogHandler) CreateSemester(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	var req models.Semester
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	if req.SemNum < 1 || req.SemNum > 8 {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SEM_NUM", "sem_num must be between 1 and 8", "", requestID),
		)
	}

	sem, err := h.catalogRepo.CreateSemester(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create semester", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(sem, requestID))
}

// ListSections handles GET /batches/:id/sections
func (h *CatalogHandler) ListSections(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	batchID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_BATCH_ID", "Batch id must be an integer", err.Error(), requestID),
		)
	}

	sections, err := h.catalogRepo.ListSections(c.Context(), int64(batchID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list sections", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(sections, requestID))
}

// CreateSection handles POST /sections. The section's USN range must
// sit inside its batch's range.
func (h *CatalogHandler) CreateSection(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	var req models.Section
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	if req.SectionName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SECTION_NAME", "section_name is required", "", requestID),
		)
	}

	prefix, lo, err := utils.SplitUSN(req.StartUSN)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_USN", "Malformed start_usn", err.Error(), requestID),
		)
	}
	endPrefix, hi, err := utils.SplitUSN(req.EndUSN)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_USN", "Malformed end_usn", err.Error(), requestID),
		)
	}
	if req.StartUSN == req.EndUSN || prefix != endPrefix || hi < lo {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_RANGE", "Section USN range is invalid", "", requestID),
		)
	}

	batch, err := h.domainRepo.BatchByID(c.Context(), req.BatchID)
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

	_, batchLo, _ := utils.SplitUSN(batch.StartUSN)
	_, batchHi, _ := utils.SplitUSN(batch.EndUSN)
	if lo < batchLo || hi > batchHi {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_RANGE", "Section USN range must sit inside the batch range", "", requestID),
		)
	}

	req.NumStudents = hi - lo + 1
	section, err := h.catalogRepo.CreateSection(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create section", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(section, requestID))
}

// ListSubjects handles GET /semesters/:id/subjects
func (h *CatalogHandler) ListSubjects(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	semID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SEM_ID", "Semester id must be an integer", err.Error(), requestID),
		)
	}

	subjects, err := h.catalogRepo.ListSubjects(c.Context(), int64(semID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list subjects", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(subjects, requestID))
}
