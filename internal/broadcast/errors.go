package broadcast

import "errors"

var (
	ErrUnknownGame          = errors.New("unknown_game")
	ErrUnknownTable         = errors.New("unknown_table")
	ErrNoTables             = errors.New("no_tables")
	ErrClientWrite          = errors.New("client_write_failed")
	ErrStreamingUnsupported = errors.New("stream_not_supported")
	ErrShuttingDown         = errors.New("shutting_down")
)

func errorCode(err error) string {
	for _, known := range []error{ErrUnknownGame, ErrUnknownTable, ErrNoTables, ErrShuttingDown, ErrStreamingUnsupported} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal_error"
}
