package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/srikarv/eduinsights/internal/marks"
	"github.com/srikarv/eduinsights/internal/models"
	"github.com/srikarv/eduinsights/internal/repository"
	"github.com/srikarv/eduinsights/pkg/logger"
	"github.com/srikarv/eduinsights/pkg/utils"
)

// StudentHandler serves students, their marks and the SGPA read model.
type StudentHandler struct {
	catalogRepo *repository.CatalogRepository
	domainRepo  *repository.DomainRepository
	logger      *logger.Logger
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(catalogRepo *repository.CatalogRepository, domainRepo *repository.DomainRepository, log *logger.Logger) *StudentHandler {
	return &StudentHandler{
		catalogRepo: catalogRepo,
		domainRepo:  domainRepo,
		logger:      log.WithComponent("student-handler"),
	}
}

// ListStudents handles GET /sections/:id/students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	sectionID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_SECTION_ID", "Section id must be an integer", err.Error(), requestID),
		)
	}

	students, err := h.catalogRepo.ListStudents(c.Context(), int64(sectionID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list students", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(students, requestID))
}

// CreateStudents handles POST /students, bulk-seeding a section's roster.
func (h *StudentHandler) CreateStudents(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	var req []models.Student
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_REQUEST", "Failed to parse request body", err.Error(), requestID),
		)
	}

	for _, s := range req {
		if err := utils.ValidateUSN(s.USN); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(
				models.NewErrorResponse("INVALID_USN", "Malformed USN in roster", err.Error(), requestID),
			)
		}
	}

	n, err := h.catalogRepo.CreateStudents(c.Context(), req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to create students", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(fiber.Map{"created": n}, requestID))
}

// ListMarks handles GET /students/:id/marks
func (h *StudentHandler) ListMarks(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	studID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_STUDENT_ID", "Student id must be an integer", err.Error(), requestID),
		)
	}

	rows, err := h.catalogRepo.ListMarks(c.Context(), int64(studID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to list marks", err.Error(), requestID),
		)
	}
	return c.JSON(models.NewSuccessResponse(rows, requestID))
}

// GetPerformance handles GET /student-performances/:id. It joins the
// student's current-semester marks with subject credits and computes
// the SGPA.
func (h *StudentHandler) GetPerformance(c *fiber.Ctx) error {
	requestID := c.Locals("requestid").(string)

	studID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(
			models.NewErrorResponse("INVALID_STUDENT_ID", "Student id must be an integer", err.Error(), requestID),
		)
	}

	student, err := h.catalogRepo.StudentByID(c.Context(), int64(studID))
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(
			models.NewErrorResponse("STUDENT_NOT_FOUND", "Student not found", "", requestID),
		)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load student", err.Error(), requestID),
		)
	}

	semester, err := h.domainRepo.CurrentSemester(c.Context(), student.BatchID)
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

	perf, err := h.domainRepo.PerformanceByStudent(c.Context(), student.StudID, semester.SemID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("DATABASE_ERROR", "Failed to load performance", err.Error(), requestID),
		)
	}

	totals := make([]int, len(perf))
	credits := make([]int, len(perf))
	for i, p := range perf {
		totals[i] = p.Total
		credits[i] = p.Credits
	}

	sgpa, err := marks.SGPA(totals, credits)
	if err != nil {
		if errors.Is(err, marks.ErrNoCredits) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(
				models.NewErrorResponse("NO_CREDITS", "Subjects carry no credits; SGPA is undefined", "", requestID),
			)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(
			models.NewErrorResponse("SGPA_FAILED", "Failed to compute SGPA", err.Error(), requestID),
		)
	}

	return c.JSON(models.NewSuccessResponse(fiber.Map{
		"stud_id":  student.StudID,
		"usn":      student.USN,
		"sem_num":  semester.SemNum,
		"subjects": perf,
		"sgpa":     sgpa,
	}, requestID))
}
