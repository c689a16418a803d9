package services

import (
	"errors"
	"fmt"
)

// ErrValidation marks input rejected before any write. Handlers map it to 400.
var ErrValidation = errors.New("validation failed")

var ErrEmptyPurchase = fmt.Errorf("%w: items must not be empty", ErrValidation)

func invalidLine(i int, format string, args ...any) error {
	return fmt.Errorf("%w: items[%d]: %s", ErrValidation, i, fmt.Sprintf(format, args...))
}
