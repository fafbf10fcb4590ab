package store

import "fmt"

// PersistenceError is a failed write or query against game_results.
type PersistenceError struct {
	Op      string
	TableID string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.TableID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s table=%s: %v", e.Op, e.TableID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
