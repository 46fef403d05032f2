package apierr

import (
	"fmt"
	"net/http"
	"strings"
)

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func ValidationFailed(details ...string) *Error {
	return New(CodeValidationFailed, http.StatusBadRequest, "Request validation failed").WithDetails(details...)
}

func InvalidID(entity string) *Error {
	return New(CodeInvalidID, http.StatusBadRequest, "Invalid "+entity+" ID")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func NotImplemented(feature string) *Error {
	return New(CodeNotImplemented, http.StatusNotImplemented, feature+" is not implemented yet")
}

func Unauthorized() *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, "Authentication required")
}

// InsufficientScope lists the scopes of which the caller needs at least one.
func InsufficientScope(scopes ...string) *Error {
	return New(CodeForbidden, http.StatusForbidden, "Insufficient scope").
		WithDetails("requires one of: " + strings.Join(scopes, ", "))
}

func Forbidden() *Error {
	return New(CodeForbidden, http.StatusForbidden, "Resource belongs to another owner")
}

// --- Deck ---

func DeckNotFound() *Error {
	return New(CodeDeckNotFound, http.StatusNotFound, "Deck not found")
}

func DeckListFailed(cause error) *Error {
	return Wrap(CodeDeckListFailed, http.StatusInternalServerError, "Failed to list decks", cause)
}

// GenerationFailed is returned when a pipeline run halts on a stage error.
func GenerationFailed(cause error) *Error {
	return Wrap(CodeGenerationFailed, http.StatusUnprocessableEntity, "Deck generation failed", cause)
}

func UnsupportedSource() *Error {
	return New(CodeUnsupportedSource, http.StatusUnprocessableEntity, "Video sources are not supported yet")
}

func EmptySource() *Error {
	return New(CodeEmptySource, http.StatusUnprocessableEntity, "Source produced no usable content")
}

func FeedbackSaveFailed(cause error) *Error {
	return Wrap(CodeFeedbackSaveFailed, http.StatusInternalServerError, "Failed to save feedback", cause)
}

func FeedbackListFailed(cause error) *Error {
	return Wrap(CodeFeedbackListFailed, http.StatusInternalServerError, "Failed to list feedback", cause)
}

// --- Render job ---

func RenderJobNotFound() *Error {
	return New(CodeRenderJobNotFound, http.StatusNotFound, "Render job not found")
}

func RenderJobCreateFailed(cause error) *Error {
	return Wrap(CodeRenderJobCreateFailed, http.StatusInternalServerError, "Failed to create render job", cause)
}

func RenderUnavailable() *Error {
	return New(CodeRenderUnavailable, http.StatusServiceUnavailable, "Rendering is not configured")
}

// --- Upload ---

func FileRequired() *Error {
	return New(CodeFileRequired, http.StatusBadRequest, "File is required (multipart field 'file')")
}

func FileNotPDF() *Error {
	return New(CodeFileNotPDF, http.StatusBadRequest, "Only PDF files can be uploaded")
}

func FileEmpty() *Error {
	return New(CodeFileEmpty, http.StatusBadRequest, "File is empty")
}

func FileTooLarge(limitMB int) *Error {
	return New(CodeFileTooLarge, http.StatusRequestEntityTooLarge, fmt.Sprintf("File must be %dMB or smaller", limitMB))
}

func UploadFailed(cause error) *Error {
	return Wrap(CodeUploadFailed, http.StatusInternalServerError, "Failed to upload file", cause)
}

func UploadNotFound() *Error {
	return New(CodeUploadNotFound, http.StatusNotFound, "Upload not found")
}

func DeleteFailed(cause error) *Error {
	return Wrap(CodeDeleteFailed, http.StatusInternalServerError, "Failed to delete upload", cause)
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
