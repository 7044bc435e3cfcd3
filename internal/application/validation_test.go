package application

import (
	"strings"
	"testing"
	"time"
)

func TestValidateStruct_UsesJSONFieldNames(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	validateStruct(TaskInput{
		Name:     strings.Repeat("x", 201),
		Priority: "urgent",
		DueDate:  time.Now(),
	}, vErr)

	want := map[string]string{
		"name":        "200 caractères au maximum",
		"priority":    "valeur attendue parmi: high, medium, low",
		"division_id": "doit être supérieur à 0",
	}
	for field, msg := range want {
		if got := vErr.FieldErrors[field]; got != msg {
			t.Fatalf("field %s: got %q, want %q", field, got, msg)
		}
	}
}

func TestValidateStruct_AcceptsValidInput(t *testing.T) {
	t.Parallel()

	vErr := &ValidationError{}
	validateStruct(EventInput{Title: "Conseil", GovernorID: 1}, vErr)
	if vErr.HasErrors() {
		t.Fatalf("expected no errors, got %v", vErr.FieldErrors)
	}

	validateStruct(EventInput{}, vErr)
	if vErr.FieldErrors["title"] != "ce champ est obligatoire" {
		t.Fatalf("expected required title, got %v", vErr.FieldErrors)
	}
}
