package project

import "errors"

// Domain errors for project persistence.
var (
	// ErrProjectNotFound is returned when a store holds no project of that name.
	ErrProjectNotFound = errors.New("project: not found")

	// ErrInvalidName is returned for an empty project name.
	ErrInvalidName = errors.New("project: invalid name")

	// ErrUnknownFormat is returned for an export format other than json or yaml.
	ErrUnknownFormat = errors.New("project: unknown format")
)
