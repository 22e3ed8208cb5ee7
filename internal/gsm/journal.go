package gsm

import "time"

// Operation statuses recorded in the journal.
const (
	OperationStarted = "started"
	OperationSuccess = "success"
	OperationFailed  = "failed"
)

// Operation is one journaled invocation of a mutating command.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
	Message    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Journal records the history of mutating operations.
type Journal interface {
	Begin(name, parameters string) (int64, error)
	Finish(id int64, status, message string) error
	List(limit int) ([]*Operation, error)
	Close() error
}
