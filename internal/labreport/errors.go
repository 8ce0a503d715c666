package labreport

import (
	"errors"
	"fmt"
)

// ErrInvalidText is reported when the input is not valid UTF-8 text.
var ErrInvalidText = errors.New("input is not valid UTF-8 text")

// ExtractionError wraps an unexpected fault raised while tokenizing or
// parsing recognizer output.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
