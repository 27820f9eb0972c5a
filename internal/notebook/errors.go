package notebook

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported notebook format")
	ErrUnknownEntry      = errors.New("unknown notebook entry")
)

// NotFoundError reports a catalog entry whose file is missing. It carries the
// working directory so relative paths can be diagnosed from the page.
type NotFoundError struct {
	Path    string
	WorkDir string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("notebook not found at: %s (working directory: %s)", e.Path, e.WorkDir)
}

type ConversionError struct {
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("error converting notebook %s: %v", e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
