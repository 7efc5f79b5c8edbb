package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ndthien/promptshrink/internal/dto"
	"github.com/ndthien/promptshrink/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	adminTestService service.AdminTestService
}

func NewAdminTestController(adminTestService service.AdminTestService) *AdminTestController {
	return &AdminTestController{adminTestService: adminTestService}
}

// CreateTest godoc
// @Summary (Admin) Create a new test
// @Description Stores a test with its evaluation contract {task, options, correct_answer}. The (model, payload) pair must be unique.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.TestCreateDTO true "Test creation data"
// @Success 201 {object} dto.TestResponseDTO "Test created"
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 409 {object} dto.ErrorResponse "Duplicate (model, payload) pair"
// @Security BearerAuth
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.adminTestService.CreateTest(req)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateTest) {
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error()})
			return
		}
		log.Warn().Err(err).Str("model", req.Model).Msg("Admin CreateTest: rejected")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to create test", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// BulkCreateTests godoc
// @Summary (Admin) Bulk ingest tests
// @Description Inserts tests in bulk, skipping rows whose (model, payload) pair already exists. Re-applying the same batch inserts nothing.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param tests body dto.TestBulkCreateDTO true "Tests to ingest"
// @Success 200 {object} dto.TestBulkCreateResponseDTO "Count of newly inserted rows"
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Security BearerAuth
// @Router /admin/tests/bulk [post]
func (c *AdminTestController) BulkCreateTests(ctx *gin.Context) {
	var req dto.TestBulkCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	inserted, err := c.adminTestService.BulkCreateTests(req)
	if err != nil {
		log.Warn().Err(err).Int("rows", len(req.Tests)).Msg("Admin BulkCreateTests: rejected")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to ingest tests", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, dto.TestBulkCreateResponseDTO{Inserted: inserted})
}

// GetAllTests godoc
// @Summary (Admin) List all tests
// @Tags Admin - Tests
// @Produce json
// @Success 200 {array} dto.TestResponseDTO
// @Security BearerAuth
// @Router /admin/tests [get]
func (c *AdminTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.adminTestService.GetAllTests()
	if err != nil {
		log.Error().Err(err).Msg("Admin GetAllTests: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list tests"})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// UpdateTest godoc
// @Summary (Admin) Activate or deactivate a test
// @Description Retired tests are deactivated, never deleted; historical results stay attached.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param update body dto.TestUpdateDTO true "New activity flag"
// @Success 204 "Updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "No such test"
// @Security BearerAuth
// @Router /admin/tests/{test_id} [patch]
func (c *AdminTestController) UpdateTest(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid test id"})
		return
	}
	var req dto.TestUpdateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if err := c.adminTestService.SetTestActive(uint(id), *req.IsActive); err != nil {
		if errors.Is(err, service.ErrTestNotFound) {
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
			return
		}
		log.Error().Err(err).Uint64("testID", id).Msg("Admin UpdateTest: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to update test"})
		return
	}
	ctx.Status(http.StatusNoContent)
}
