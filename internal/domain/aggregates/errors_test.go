package aggregates

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewError(CodeNotFound, "Course.Start", "course not found", nil), "Course.Start: course not found (not_found)"},
		{NewError(CodeConflict, "Course.Start", "", nil), "Course.Start (conflict)"},
		{NewError(CodeInternal, "", "boom", nil), "boom (internal)"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("want %q got %q", tc.want, got)
		}
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := NewError(CodePreconditionFailed, "Task.Complete", "subject not in progress", nil)
	wrapped := fmt.Errorf("handler: %w", base)
	if !IsCode(wrapped, CodePreconditionFailed) {
		t.Fatalf("expected precondition code through fmt wrapping")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestValidationErrorCarriesFields(t *testing.T) {
	err := NewValidationError("Enrollment.Enroll", "invalid trainees", []FieldError{{Field: "traineeIds[0]", Message: "not a trainee"}})
	e, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if e.Code != CodeValidation || len(e.Fields) != 1 || e.Fields[0].Field != "traineeIds[0]" {
		t.Fatalf("unexpected error: %+v", e)
	}
}
