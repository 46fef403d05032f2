package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeInvalidID          Code = "INVALID_ID"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeNotImplemented     Code = "NOT_IMPLEMENTED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeUnauthorized       Code = "UNAUTHORIZED"
)

// Deck errors.
const (
	CodeDeckNotFound       Code = "DECK_NOT_FOUND"
	CodeDeckListFailed     Code = "DECK_LIST_FAILED"
	CodeGenerationFailed   Code = "GENERATION_FAILED"
	CodeUnsupportedSource  Code = "UNSUPPORTED_SOURCE"
	CodeEmptySource        Code = "EMPTY_SOURCE"
	CodeFeedbackSaveFailed Code = "FEEDBACK_SAVE_FAILED"
	CodeFeedbackListFailed Code = "FEEDBACK_LIST_FAILED"
)

// Render job errors.
const (
	CodeRenderJobNotFound     Code = "RENDER_JOB_NOT_FOUND"
	CodeRenderJobCreateFailed Code = "RENDER_JOB_CREATE_FAILED"
	CodeRenderUnavailable     Code = "RENDER_UNAVAILABLE"
)

// Upload errors.
const (
	CodeFileRequired   Code = "FILE_REQUIRED"
	CodeFileNotPDF     Code = "FILE_NOT_PDF"
	CodeFileEmpty      Code = "FILE_EMPTY"
	CodeFileTooLarge   Code = "FILE_TOO_LARGE"
	CodeUploadFailed   Code = "UPLOAD_FAILED"
	CodeUploadNotFound Code = "UPLOAD_NOT_FOUND"
	CodeDeleteFailed   Code = "DELETE_FAILED"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
