package resource

import (
	"fmt"

	"github.com/pkg/errors"
)

type fieldRequiredError struct {
	path  string
	field string
}

func (e *fieldRequiredError) Error() string {
	return fmt.Sprintf("%s: %q is required", e.path, e.field)
}

// NewConfigValidationFieldRequiredError returns a config validation error for a missing field.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return &fieldRequiredError{path: path, field: field}
}

// GetFieldFromFieldRequiredError returns the missing field name, or "" if err is not a
// field-required error.
func GetFieldFromFieldRequiredError(err error) string {
	var fre *fieldRequiredError
	if errors.As(err, &fre) {
		return fre.field
	}
	return ""
}

// NewConfigValidationError returns a config validation error at the given path.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

// DependencyNotFoundError is used when a resource is not found in a dependencies.
func DependencyNotFoundError(name Name) error {
	return errors.Errorf("resource %q not found; ensure it is listed as a dependency", name)
}
