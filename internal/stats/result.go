package stats

import "encoding/json"

// State tags whether a feed could be loaded at all.
type State string

const (
	StateUnavailable State = "unavailable"
	StateAvailable   State = "available"
)

// Result holds either a normalized stats record or the unavailable state.
// The zero value is unavailable, so "zero tests ran" and "feed missing" never
// collapse into the same thing.
type Result[T any] struct {
	State State
	Stats T
}

func Available[T any](s T) Result[T] {
	return Result[T]{State: StateAvailable, Stats: s}
}

func Unavailable[T any]() Result[T] {
	return Result[T]{State: StateUnavailable}
}

func (r Result[T]) IsAvailable() bool {
	return r.State == StateAvailable
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.IsAvailable() {
		return json.Marshal(struct {
			State State `json:"state"`
		}{State: StateUnavailable})
	}
	return json.Marshal(struct {
		State State `json:"state"`
		Stats T     `json:"stats"`
	}{State: StateAvailable, Stats: r.Stats})
}
