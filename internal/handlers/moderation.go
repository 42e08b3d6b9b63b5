// internal/handlers/moderation.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/makerden/makerden-backend/internal/i18n"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/services"
	"github.com/makerden/makerden-backend/internal/utils"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
	scoreService      *services.ScoreService
	classifierService *services.ClassifierService
}

func NewModerationHandler(moderationService *services.ModerationService, scoreService *services.ScoreService, classifierService *services.ClassifierService) *ModerationHandler {
	return &ModerationHandler{
		moderationService: moderationService,
		scoreService:      scoreService,
		classifierService: classifierService,
	}
}

type ModerationActionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// POST /v1/moderation/:contentType/:id/queue
func (h *ModerationHandler) QueueContent(c *gin.Context) {
	h.runAction(c, h.moderationService.Queue, i18n.KeyModerationQueued)
}

// POST /v1/moderation/:contentType/:id/hide
func (h *ModerationHandler) HideContent(c *gin.Context) {
	h.runAction(c, h.moderationService.Hide, i18n.KeyModerationHidden)
}

// POST /v1/moderation/:contentType/:id/restore
func (h *ModerationHandler) RestoreContent(c *gin.Context) {
	h.runAction(c, h.moderationService.Restore, i18n.KeyModerationRestored)
}

func (h *ModerationHandler) runAction(c *gin.Context, action func(services.Actor, models.ContentKey, string) (models.ModerationStatus, error), messageKey string) {
	lang := utils.GetLangFromContext(c)

	key, ok := contentKeyFromPath(c)
	if !ok {
		return
	}

	var req ModerationActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
			return
		}
	}

	actor, ok := actorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	status, err := action(actor, key, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			utils.ForbiddenResponse(c, "")
		case errors.Is(err, services.ErrContentNotFound):
			utils.NotFoundResponse(c, "content")
		case errors.Is(err, services.ErrStateTransition):
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyModerationConflict))
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"ok":      true,
		"status":  status,
		"message": i18n.T(lang, messageKey),
	})
}

// GET /v1/moderation/:contentType/:id/score
func (h *ModerationHandler) GetContentScore(c *gin.Context) {
	key, ok := contentKeyFromPath(c)
	if !ok {
		return
	}

	score, err := h.scoreService.Get(key)
	if err != nil {
		utils.NotFoundResponse(c, "content")
		return
	}

	status, _ := h.moderationService.Status(key)

	utils.SuccessResponse(c, gin.H{
		"content_type":      score.ContentType,
		"content_id":        score.ContentID,
		"reports_count":     score.ReportsCount,
		"reporters_count":   score.ReportersCount,
		"weight_total":      score.WeightTotal,
		"site_scale":        score.SiteScale,
		"auto_hidden_at":    score.AutoHiddenAt,
		"last_report_at":    score.LastReportAt,
		"moderation_status": status,
	})
}

// GET /v1/moderation/queue
func (h *ModerationHandler) GetQueue(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	scores, total, err := h.scoreService.Queue(params.Offset(), params.Limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(scores, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /v1/moderation/logs
func (h *ModerationHandler) GetLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	logs, total, err := h.moderationService.Logs(params.Offset(), params.Limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(logs, total, params)
	utils.PaginatedResponse(c, result)
}

type ScanRequest struct {
	ContentType string `json:"content_type" binding:"required" validate:"required,content_type"`
	ContentID   string `json:"content_id" binding:"required" validate:"required,uuid"`
	ContentURL  string `json:"content_url" validate:"omitempty,url"`
	Text        string `json:"text" validate:"max=20000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

// POST /v1/moderation/scan
func (h *ModerationHandler) ScanContent(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}
	if req.Text == "" && req.ImageURL == "" {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "text or image_url"), nil)
		return
	}

	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "content_id"), nil)
		return
	}
	key := models.ContentKey{Type: models.ContentType(req.ContentType), ID: contentID}

	response := gin.H{"ok": true}

	if req.Text != "" {
		textResult, err := h.classifierService.ScanText(c.Request.Context(), key, req.ContentURL, req.Text)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadGateway, "CLASSIFIER_ERROR", err.Error(), nil)
			return
		}
		response["text"] = gin.H{
			"flagged":  textResult.Flagged,
			"summary":  textResult.Summary,
			"signals":  textResult.Signals,
			"reported": textResult.Reported,
			"status":   textResult.Status,
		}
	}

	if req.ImageURL != "" {
		imageResult, err := h.classifierService.ScanImage(c.Request.Context(), key, req.ImageURL)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadGateway, "CLASSIFIER_ERROR", err.Error(), nil)
			return
		}
		response["image"] = gin.H{
			"status": imageResult.Status,
			"labels": imageResult.Labels,
			"reason": imageResult.Reason,
		}
	}

	utils.SuccessResponse(c, response)
}

func contentKeyFromPath(c *gin.Context) (models.ContentKey, bool) {
	lang := utils.GetLangFromContext(c)

	contentType := models.ContentType(c.Param("contentType"))
	if !contentType.Valid() {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "content type"), nil)
		return models.ContentKey{}, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "content id"), nil)
		return models.ContentKey{}, false
	}

	return models.ContentKey{Type: contentType, ID: id}, true
}

func actorFromContext(c *gin.Context) (services.Actor, bool) {
	idStr, ok := utils.GetUserIDFromContext(c)
	if !ok {
		return services.Actor{}, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return services.Actor{}, false
	}

	roleStr, ok := utils.GetUserRoleFromContext(c)
	if !ok {
		return services.Actor{}, false
	}

	return services.Actor{
		ID:        &id,
		Role:      models.UserRole(roleStr),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, true
}
