package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Accessors(t *testing.T) {
	cause := errors.New("llm down")
	e := GenerationFailed(cause).WithDetails("stage: draft", "[draft] failed: llm down")

	if !errors.Is(e, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if e.Code() != CodeGenerationFailed {
		t.Errorf("code = %s", e.Code())
	}
	if e.Status() != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", e.Status())
	}
	if e.Message() != "Deck generation failed" {
		t.Errorf("message = %q", e.Message())
	}

	body := e.Response().Error
	if len(body.Details) != 2 || body.Details[0] != "stage: draft" {
		t.Errorf("details = %v", body.Details)
	}
	if body.Message != e.Message() || body.Code != e.Code() {
		t.Errorf("body = %+v", body)
	}
}
