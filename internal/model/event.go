package model

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth       = "auth"
	EventCategoryContent    = "content"
	EventCategoryPermission = "permission"
	EventCategoryRegistry   = "registry"
	EventCategoryAudit      = "audit"
	EventCategorySystem     = "system"
	EventCategoryCache      = "cache"
)
