package olapbench

import (
	"errors"
	"fmt"
	"os/exec"
)

// NetworkError reports that an archive could not be retrieved from its source.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("failed to fetch %v: %v", e.URL, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IntegrityError reports a checksum mismatch that persisted after a fresh download.
type IntegrityError struct {
	Path string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %v: expected %v, got %v", e.Path, e.Want, e.Got)
}

// BuildError reports that the generator toolkit failed to compile.
type BuildError struct {
	Dir string
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("failed to build toolkit in %v: %v", e.Dir, e.Err) }
func (e *BuildError) Unwrap() error { return e.Err }

// GenerationError reports that the generator executable exited with failure
// or produced an incomplete set of raw tables.
type GenerationError struct {
	Suite       string
	ScaleFactor string
	Err         error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %v data at sf%v: %v", e.Suite, e.ScaleFactor, e.Err)
}
func (e *GenerationError) Unwrap() error { return e.Err }

// NormalizationError reports an I/O failure while rewriting a raw table into
// its final location.
type NormalizationError struct {
	Table string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("failed to normalize table %v: %v", e.Table, e.Err)
}
func (e *NormalizationError) Unwrap() error { return e.Err }

// ExitCode maps a pipeline error to the process exit status, propagating the
// underlying tool's own exit code where one is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
