// Package gazetteer splits the administrative part of a Japanese address into
// prefecture, city, town and the street remainder.
package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result is the gazetteer's view of an address. City is reported the way the
// dictionary stores it, so it may still carry a county ("西牟婁郡白浜町") or a
// ward of a designated city ("大阪市中央区").
type Result struct {
	Pref string `json:"pref"`
	City string `json:"city"`
	Town string `json:"town"`
	Addr string `json:"addr"`
}

// Splitter maps one address string to a Result.
type Splitter interface {
	Split(ctx context.Context, text string) (*Result, error)
}

// ErrUnmatched is wrapped by every failure to identify a prefecture or city.
var ErrUnmatched = errors.New("gazetteer: address not matched")

// Level names the administrative level at which matching stopped.
type Level string

const (
	LevelPrefecture Level = "prefecture"
	LevelCity       Level = "city"
)

// UnmatchedError carries the unmatched input and the closest known names.
type UnmatchedError struct {
	Level       Level
	Input       string
	Suggestions []string
}

func (e *UnmatchedError) Error() string {
	msg := fmt.Sprintf("gazetteer: %s not found in %q", e.Level, e.Input)
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

func (e *UnmatchedError) Unwrap() error { return ErrUnmatched }

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(ctx context.Context, text string) (*Result, error)

func (f SplitterFunc) Split(ctx context.Context, text string) (*Result, error) {
	return f(ctx, text)
}
