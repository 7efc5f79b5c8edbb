package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ndthien/promptshrink/internal/dto"
	"github.com/ndthien/promptshrink/internal/middleware"
	"github.com/ndthien/promptshrink/internal/service"
	"github.com/rs/zerolog/log"
)

type AttemptController struct {
	attemptService service.AttemptService
}

func NewAttemptController(attemptService service.AttemptService) *AttemptController {
	return &AttemptController{attemptService: attemptService}
}

// SubmitAttempt godoc
// @Summary Submit a compression attempt
// @Description Registers a (compressing_prompt, model) pair for asynchronous evaluation against the active test corpus. Always succeeds at POST time; evaluation failures surface through subsequent reads.
// @Tags Attempts
// @Accept json
// @Produce json
// @Param attempt body dto.AttemptSubmitDTO true "Attempt data"
// @Success 201 {object} dto.AttemptResponseDTO "Attempt registered"
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 401 {object} dto.ErrorResponse "Not authenticated"
// @Security BearerAuth
// @Router /attempts [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	var req dto.AttemptSubmitDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	claims := middleware.GetClaims(ctx)
	resp, err := c.attemptService.SubmitAttempt(claims.Login, req)
	if err != nil {
		log.Error().Err(err).Str("login", claims.Login).Msg("SubmitAttempt: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to submit attempt"})
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetMyAttempts godoc
// @Summary List the caller's attempts
// @Tags Attempts
// @Produce json
// @Success 200 {array} dto.AttemptResponseDTO
// @Failure 401 {object} dto.ErrorResponse "Not authenticated"
// @Security BearerAuth
// @Router /attempts [get]
func (c *AttemptController) GetMyAttempts(ctx *gin.Context) {
	claims := middleware.GetClaims(ctx)
	attempts, err := c.attemptService.GetAttemptsForUser(claims.Login)
	if err != nil {
		log.Error().Err(err).Str("login", claims.Login).Msg("GetMyAttempts: service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to list attempts"})
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// GetAttemptDetails godoc
// @Summary Read one attempt with its per-test results
// @Tags Attempts
// @Produce json
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDetailDTO
// @Failure 401 {object} dto.ErrorResponse "Not authenticated"
// @Failure 403 {object} dto.ErrorResponse "Not the owner"
// @Failure 404 {object} dto.ErrorResponse "No such attempt"
// @Security BearerAuth
// @Router /attempts/{attempt_id} [get]
func (c *AttemptController) GetAttemptDetails(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("attempt_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid attempt id"})
		return
	}

	claims := middleware.GetClaims(ctx)
	detail, err := c.attemptService.GetAttemptDetails(uint(id), claims.Login, claims.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAttemptNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		case errors.Is(err, service.ErrForbidden):
			ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: err.Error()})
		default:
			log.Error().Err(err).Uint64("attemptID", id).Msg("GetAttemptDetails: service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to load attempt"})
		}
		return
	}
	ctx.JSON(http.StatusOK, detail)
}
