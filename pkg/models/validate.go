package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is matched by every error returned from Validate.
var ErrInvalid = errors.New("invalid entity")

var validate = validator.New()

// InvalidError lists the fields of an entity that failed validation.
type InvalidError struct {
	Entity string
	Fields []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Fields, ", "))
}

func (e *InvalidError) Is(target error) bool { return target == ErrInvalid }

// Validate checks v against its validate struct tags.
func Validate(entity string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %s: %w", entity, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return &InvalidError{Entity: entity, Fields: fields}
}
