// internal/handlers/report.go
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

type ReportHandler struct {
	reportService *services.ReportService
	trustService  *services.TrustService
}

func NewReportHandler(reportService *services.ReportService, trustService *services.TrustService) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		trustService:  trustService,
	}
}

type CreateReportRequest struct {
	ContentType string                 `json:"content_type" binding:"required" validate:"required,content_type"`
	ContentID   string                 `json:"content_id" binding:"required" validate:"required,uuid"`
	ContentURL  string                 `json:"content_url" validate:"omitempty,url"`
	Reason      string                 `json:"reason" binding:"required" validate:"required,report_reason"`
	Details     string                 `json:"details" validate:"max=2000"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// POST /v1/reports
func (h *ReportHandler) CreateReport(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	reporterIDStr, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	reporterID, err := uuid.Parse(reporterIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "content_id"), nil)
		return
	}

	result, err := h.reportService.Submit(services.SubmitInput{
		ReporterID:  reporterID,
		ContentType: models.ContentType(req.ContentType),
		ContentID:   contentID,
		ContentURL:  req.ContentURL,
		Reason:      models.ReportReason(req.Reason),
		Details:     req.Details,
		Metadata:    models.JSONB(req.Metadata),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateReport):
			// A repeat report is acknowledged, not an error: the reporter's
			// earlier report already counts.
			utils.SuccessResponse(c, gin.H{
				"ok":        true,
				"duplicate": true,
				"message":   i18n.T(lang, i18n.KeyReportDuplicate),
			})
		case errors.Is(err, services.ErrSelfReport):
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "SELF_REPORT", i18n.T(lang, i18n.KeyReportSelf), nil)
		case errors.Is(err, services.ErrInvalidReason):
			utils.ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_REASON", i18n.T(lang, i18n.KeyReportInvalidReason), nil)
		case errors.Is(err, services.ErrAggregationConflict):
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyModerationConflict))
		default:
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.CreatedResponse(c, gin.H{
		"ok":                true,
		"duplicate":         false,
		"message":           i18n.T(lang, i18n.KeyReportCreated),
		"report_id":         result.Report.ID,
		"weight":            result.Report.Weight,
		"weight_total":      result.Aggregate.WeightTotal,
		"weight_threshold":  result.Aggregate.Threshold,
		"auto_hidden":       result.Aggregate.AutoTriggered,
		"moderation_status": result.Status,
	})
}

// GET /v1/users/:id/report-profile
func (h *ReportHandler) GetReportProfile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "user id"), nil)
		return
	}

	profile, err := h.trustService.Profile(userID)
	if err != nil {
		utils.NotFoundResponse(c, "report")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user_id":          profile.UserID,
		"reports_count":    profile.ReportsSubmitted,
		"confirmed_count":  profile.ReportsConfirmed,
		"rejected_count":   profile.ReportsRejected,
		"activity_points":  profile.ActivityPoints,
		"trust_score":      profile.TrustScore,
		"weight":           profile.Weight,
		"last_computed_at": profile.LastComputedAt,
	})
}
