package app

import "gsm-go/internal/gsm"

// Operation tracks the CLI command being run. Operations start in memory
// with ID=0; only mutating commands persist them to the journal.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string
	Message    string
}

// NewOperation creates a new in-memory operation.
func NewOperation(name, parameters string) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		Status:     gsm.OperationSuccess,
	}
}

// Persisted returns true if this operation has been saved to the journal.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation failed with err's message. A nil err is ignored.
func (op *Operation) Fail(err error) {
	if err == nil {
		return
	}
	op.Status = gsm.OperationFailed
	op.Message = err.Error()
}
