// Package store is the local authoritative store. Every call returns a Result
// and never retries; queueing on failure is the caller's decision.
package store

// Result is the uniform outcome of a store call
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// Err returns the underlying error, nil on success
func (r Result[T]) Err() error {
	return r.err
}

func ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func fail[T any](err error) Result[T] {
	return Result[T]{Success: false, Error: err.Error(), err: err}
}
