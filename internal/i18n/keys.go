// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "auth.admin_access_denied"

	// Reports
	KeyReportCreated       = "report.created"
	KeyReportDuplicate     = "report.duplicate"
	KeyReportSelf          = "report.self"
	KeyReportInvalidReason = "report.invalid_reason"
	KeyReportNotFound      = "report.not_found"

	// Moderation
	KeyModerationQueued   = "moderation.queued"
	KeyModerationHidden   = "moderation.hidden"
	KeyModerationRestored = "moderation.restored"
	KeyModerationDenied   = "moderation.denied"
	KeyModerationNotFound = "moderation.content_not_found"
	KeyModerationConflict = "moderation.conflict"

	// Content
	KeyContentNotFound = "content.not_found"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
)
