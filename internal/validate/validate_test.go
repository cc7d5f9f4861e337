package validate

import (
	"errors"
	"testing"
)

type sample struct {
	CourseID string `json:"courseId" validate:"required,entity_id"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	Amount   int64  `json:"amount" validate:"gte=0"`
}

func TestValidator_Struct(t *testing.T) {
	t.Parallel()

	v := New()

	tests := []struct {
		name       string
		input      sample
		wantFields []string
	}{
		{"valid", sample{CourseID: "6650f1a2b3c4", Email: "a@example.com", Role: "admin"}, nil},
		{"missing course", sample{}, []string{"courseId"}},
		{"bad course id", sample{CourseID: "../etc/passwd"}, []string{"courseId"}},
		{"bad email", sample{CourseID: "c1", Email: "nope"}, []string{"email"}},
		{"bad role", sample{CourseID: "c1", Role: "root"}, []string{"role"}},
		{"negative amount", sample{CourseID: "c1", Amount: -5}, []string{"amount"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tt.input)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			for _, field := range tt.wantFields {
				if _, ok := verr.Errors[field]; !ok {
					t.Errorf("missing error for %q in %v", field, verr.Errors)
				}
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()

	err := New().Struct(sample{})
	if err == nil || err.Error() != "courseId is required" {
		t.Errorf("Error() = %v", err)
	}
}

func TestValidator_Var(t *testing.T) {
	t.Parallel()

	v := New()
	if err := v.Var("asha@example.com", "required,email"); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	if err := v.Var("", "required"); err == nil {
		t.Error("empty value accepted")
	}
}
