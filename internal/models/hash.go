package models

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalParams serializes (args, kwargs) into the canonical JSON form
// stored in task_params. Map keys are emitted in sorted order, so argument
// ordering in kwargs never affects the result. Nil args and kwargs normalize
// to an empty list and object.
func CanonicalParams(args []any, kwargs map[string]any) (string, error) {
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	data, err := json.Marshal([2]any{args, kwargs})
	if err != nil {
		return "", fmt.Errorf("could not serialize task params: %w", err)
	}
	return string(data), nil
}

// ComputeHash derives the dedup hash for a task from its name and canonical
// params. Identical inputs always produce the same hash; the hash is not
// guaranteed globally unique.
func ComputeHash(taskName, taskParams string) string {
	sum := sha1.Sum([]byte(taskName + taskParams))
	return hex.EncodeToString(sum[:])
}

// Params deserializes the stored task_params back into (args, kwargs).
// Corrupt stored params surface as an error; no recovery is attempted.
func (t *Task) Params() (args []any, kwargs map[string]any, err error) {
	var raw [2]json.RawMessage
	if err = json.Unmarshal([]byte(t.TaskParams), &raw); err != nil {
		return nil, nil, fmt.Errorf("malformed task params for task %q: %w", t.TaskName, err)
	}
	if err = json.Unmarshal(raw[0], &args); err != nil {
		return nil, nil, fmt.Errorf("malformed task args for task %q: %w", t.TaskName, err)
	}
	if err = json.Unmarshal(raw[1], &kwargs); err != nil {
		return nil, nil, fmt.Errorf("malformed task kwargs for task %q: %w", t.TaskName, err)
	}
	return args, kwargs, nil
}
