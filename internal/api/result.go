package api

// Result is either a value or an error, never both. Snapshots published by the
// coordinators use it so subscribers branch on OK instead of inspecting shape.
type Result[T any] struct {
	Value T
	Err   error
}

func Success[T any](v T) Result[T] { return Result[T]{Value: v} }

func Failure[T any](err error) Result[T] { return Result[T]{Err: err} }

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool { return r.Err == nil }

// Get returns the value and error in the usual Go order.
func (r Result[T]) Get() (T, error) { return r.Value, r.Err }
