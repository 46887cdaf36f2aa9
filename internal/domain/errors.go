package domain

import "errors"

var (
	// ErrSweepNotFound is returned when a sweep run cannot be found by ID.
	ErrSweepNotFound = errors.New("sweep run not found")

	// ErrInvalidCircuit is returned when a circuit fails structural validation.
	ErrInvalidCircuit = errors.New("invalid circuit")

	// ErrInvalidSweep is returned when a sweep specification cannot be built.
	ErrInvalidSweep = errors.New("invalid sweep specification")

	// ErrInvalidRepetitions is returned when the repetition count is out of range.
	ErrInvalidRepetitions = errors.New("repetitions must be between 1 and 10000")

	// ErrInvalidTarget is returned when an unknown execution target is requested.
	ErrInvalidTarget = errors.New("invalid or unsupported target")

	// ErrSweepTooLarge is returned when a sweep expands to too many points.
	ErrSweepTooLarge = errors.New("sweep exceeds maximum number of points")

	// ErrJobNotFound is returned when a remote job cannot be re-attached.
	ErrJobNotFound = errors.New("remote job not found")

	// ErrPublishFailed is returned when the message broker publish fails.
	ErrPublishFailed = errors.New("failed to publish sweep to message queue")

	// ErrNoMeasurements is returned when a job result is converted for a
	// circuit that carried no measurement keys.
	ErrNoMeasurements = errors.New("circuit has no measurement keys; cannot build measurement results")

	// ErrEmptyDistribution is returned when a simulator result has no probability mass.
	ErrEmptyDistribution = errors.New("simulator result has an empty probability distribution")
)
