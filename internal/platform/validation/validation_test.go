package validation

import (
	"testing"

	domainagg "github.com/yungbote/trainhub-backend/internal/domain/aggregates"
)

type sampleRequest struct {
	Title string   `json:"title" validate:"notblank,max=10"`
	Email string   `json:"email" validate:"required,email"`
	Grade *int     `json:"grade" validate:"omitempty,min=0,max=100"`
	Tags  []string `json:"tags" validate:"dive,notblank"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()
	grade := 120
	err := v.Struct("Test.Op", sampleRequest{Title: "  ", Email: "nope", Grade: &grade, Tags: []string{"ok", ""}})
	de, ok := domainagg.As(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Code != domainagg.CodeValidation || de.Op != "Test.Op" {
		t.Fatalf("unexpected error: %+v", de)
	}
	got := map[string]string{}
	for _, f := range de.Fields {
		got[f.Field] = f.Message
	}
	for _, field := range []string{"title", "email", "grade", "tags[1]"} {
		if got[field] == "" {
			t.Fatalf("missing field error for %q in %v", field, got)
		}
	}
	if got["title"] != "this field cannot be blank" {
		t.Fatalf("title message: %q", got["title"])
	}
}

func TestStructAcceptsValidInput(t *testing.T) {
	if err := New().Struct("Test.Op", sampleRequest{Title: "Go", Email: "a@b.co"}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
