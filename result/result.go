// Package result carries the outcome of a fallible call together with the
// value a caller substitutes when the call fails.
package result

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result is a value plus the error that produced it.
type Result[T any] struct {
	Value T
	Err   error
}

// Of wraps the usual (value, error) pair.
func Of[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err}
}

// Ok reports whether the call succeeded.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Or returns the value, or def when the call failed.
func (r Result[T]) Or(def T) T {
	if r.Err != nil {
		return def
	}
	return r.Value
}

// OrLog is Or with the failure logged at warn level on event.
// fields may add context such as representative and counterpart ids.
func (r Result[T]) OrLog(def T, msg string, fields func(e *zerolog.Event) *zerolog.Event) T {
	if r.Err == nil {
		return r.Value
	}
	e := log.Warn().Err(r.Err)
	if fields != nil {
		e = fields(e)
	}
	e.Msg(msg)
	return def
}
