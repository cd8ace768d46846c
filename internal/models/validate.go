package models

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateInput checks a user-supplied request struct and returns a
// validation error naming the first failing fields.
func ValidateInput(v any) error {
	if err := Validator().Struct(v); err != nil {
		return NewValidationError(describe(err))
	}
	return nil
}

func validateStruct(what string, v any) error {
	if err := Validator().Struct(v); err != nil {
		return NewDecodeError(fmt.Sprintf("invalid %s: %s", what, describe(err)), err)
	}
	return nil
}

// validateAuthor is the relaxed check applied to embedded author
// snapshots, which the backend may populate partially.
func validateAuthor(u *User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("author id is required")
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
