package storage

import "errors"

var (
	// ErrNoOutputDir is returned when a file sink is created without a directory.
	ErrNoOutputDir = errors.New("output directory is required")

	// ErrTooManyDuplicates is returned when no free file name is left for a page.
	ErrTooManyDuplicates = errors.New("too many pages with the same file name")
)
