package models

import (
	"database/sql/driver"
	"fmt"
)

// scanString implements sql.Scanner for the string enums in this package
func scanString[T ~string](dst *T, value any) error {
	if value == nil {
		*dst = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*dst = T(v)
	case []byte:
		*dst = T(string(v))
	default:
		return fmt.Errorf("cannot scan %T into %T", value, *dst)
	}

	return nil
}

// valueString implements driver.Valuer for the string enums in this package
func valueString[T ~string](v T, valid bool) (driver.Value, error) {
	if !valid {
		return nil, fmt.Errorf("invalid %T: %q", v, string(v))
	}
	return string(v), nil
}
