package importjob

import "errors"

var (
	ErrJobNotFound       = errors.New("import job not found")
	ErrMissingJobField   = errors.New("missing required import job field")
	ErrInvalidJobField   = errors.New("invalid import job field")
	ErrInvalidTransition = errors.New("invalid import job status transition")
)
