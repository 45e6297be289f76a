package worker

import (
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/aigrader/pkg/models"
)

// Outcome is what a handler returns for one task: a result payload or an error, never both.
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// Succeeded wraps a result value. A value that cannot be encoded becomes a failure.
func Succeeded(result any) Outcome {
	data, err := json.Marshal(result)
	if err != nil {
		return Failed(fmt.Errorf("encoding result: %w", err))
	}
	return Outcome{Result: data}
}

func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// Status returns the terminal status the outcome maps to.
func (o Outcome) Status() string {
	if o.Err != nil {
		return models.TaskStatusFailure
	}
	return models.TaskStatusSuccess
}

// record builds the terminal result store record for a task.
func (o Outcome) record(taskID, kind string) models.TaskRecord {
	rec := models.TaskRecord{TaskID: taskID, Kind: kind, Status: o.Status()}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	} else {
		rec.Result = o.Result
	}
	return rec
}
