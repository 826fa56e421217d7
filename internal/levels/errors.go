package levels

import "errors"

var (
	// ErrInvalidConfiguration is returned for parameters rejected at configuration time.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOutOfOrderIngestion is returned when a bar arrives behind the last ingested bar
	// while still inside the active window.
	ErrOutOfOrderIngestion = errors.New("out-of-order ingestion")
)
