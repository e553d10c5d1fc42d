package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// UnansweredWire is how an unanswered slot travels over JSON.
const UnansweredWire = -1

// ErrInvalidAnswer is returned when an answer value is neither an option
// index nor the unanswered sentinel.
var ErrInvalidAnswer = errors.New("answer must be an option index, -1 or null")

// Answer is one slot of an attempt's answer sheet. The zero value is
// Unanswered, which never matches any option index.
type Answer struct {
	Option   int
	Answered bool
}

// Unanswered marks a question the user did not select an option for.
var Unanswered = Answer{}

// Choose returns an answer selecting the given option index.
func Choose(option int) Answer {
	return Answer{Option: option, Answered: true}
}

// Matches reports whether the answer selects the given option.
func (a Answer) Matches(option int) bool {
	return a.Answered && a.Option == option
}

// Wire returns the integer form used in API payloads.
func (a Answer) Wire() int {
	if !a.Answered {
		return UnansweredWire
	}
	return a.Option
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Itoa(a.Wire())), nil
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Unanswered
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidAnswer
	}
	switch {
	case n == UnansweredWire:
		*a = Unanswered
	case n >= 0:
		*a = Choose(n)
	default:
		return ErrInvalidAnswer
	}
	return nil
}

// UnansweredSheet returns n unanswered slots.
func UnansweredSheet(n int) []Answer {
	return make([]Answer, n)
}
