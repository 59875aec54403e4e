package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by errors.Is for any resolution that failed because
// nothing was bound under the requested name.
var ErrNotFound = errors.New("binding not found")

// ContainerError reports a failed resolution
type ContainerError struct {
	Abstract string
	Chain    []string
	Reason   string
	Err      error
}

// Error implements the error interface
func (e *ContainerError) Error() string {
	msg := fmt.Sprintf("container: cannot resolve %q: %s", e.Abstract, e.Reason)
	if len(e.Chain) > 1 {
		msg += " (" + strings.Join(e.Chain, " -> ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ContainerError) Unwrap() error {
	return e.Err
}

// Is reports not-found resolutions as ErrNotFound
func (e *ContainerError) Is(target error) bool {
	return target == ErrNotFound && e.Reason == ErrNotFound.Error()
}

// IsContainerError reports whether err carries a ContainerError
func IsContainerError(err error) bool {
	var ce *ContainerError
	return errors.As(err, &ce)
}

func wrapResolution(name string, chain []string, err error) error {
	var ce *ContainerError
	if errors.As(err, &ce) {
		return err
	}
	return &ContainerError{
		Abstract: name,
		Chain:    append([]string(nil), chain...),
		Reason:   "resolution failed",
		Err:      err,
	}
}
