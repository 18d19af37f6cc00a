package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/shopadmin/internal/repository"
	appErrors "github.com/charlesng35/shopadmin/pkg/errors"
)

// translate maps repository failures onto the error taxonomy. entity names the record kind
// in messages, e.g. "user".
func translate(entity string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		return appErrors.NewNotFound(capitalize(entity) + " not found")
	}

	var unique *repository.UniqueViolationError
	if errors.As(err, &unique) {
		if unique.Field == "" {
			return appErrors.NewConflict("", capitalize(entity)+" already exists.")
		}
		return appErrors.NewConflict(unique.Field, capitalize(unique.Field)+" already exists.")
	}

	var invalid *repository.FieldValidationError
	if errors.As(err, &invalid) {
		return appErrors.NewValidation("Validation error", invalid.Failures.FieldErrors()...)
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	return fmt.Errorf("%s service: %w", entity, err)
}

func capitalize(value string) string {
	value = strings.ReplaceAll(value, "_", " ")
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
