package tpk

import "errors"

var (
	// ErrNotFound a required archive entry or the package itself is missing
	ErrNotFound = errors.New("entry not found")
	// ErrFormat malformed sidecar document or truncated binary record
	ErrFormat = errors.New("malformed tile package")
	// ErrUnsupportedFormat export requested for a MIXED raster package
	ErrUnsupportedFormat = errors.New("unsupported tile format")
	// ErrValidation a bad caller supplied parameter
	ErrValidation = errors.New("invalid parameter")
	// ErrAlreadyExists the destination exists and overwrite was not requested
	ErrAlreadyExists = errors.New("destination already exists")
	// ErrClosed operation on an already closed package
	ErrClosed = errors.New("tile package is closed")
)
