// Package fixture loads test definitions from YAML for seeding the catalog.
package fixture

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mocktest/engine/internal/model"
)

// ErrInvalidFixture is returned when a definition would violate catalog constraints.
var ErrInvalidFixture = errors.New("invalid test fixture")

// File is the top-level YAML document.
type File struct {
	Tests []model.Test `yaml:"tests"`
}

// Load decodes and validates every test in r. Unknown keys are rejected.
func Load(r io.Reader) ([]model.Test, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidFixture)
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var errs []error
	for i := range f.Tests {
		normalize(&f.Tests[i])
		if err := Validate(&f.Tests[i]); err != nil {
			errs = append(errs, fmt.Errorf("tests[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return f.Tests, nil
}

func normalize(t *model.Test) {
	t.Title = strings.TrimSpace(t.Title)
	for i := range t.Questions {
		if t.Questions[i].Points == 0 {
			t.Questions[i].Points = 1
		}
	}
}

// Validate checks a definition against the constraints the engine relies on.
func Validate(t *model.Test) error {
	switch {
	case t.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidFixture)
	case t.OwnerID <= 0:
		return fmt.Errorf("%w: owner_id must be positive", ErrInvalidFixture)
	case t.TimeLimitMinutes <= 0:
		return fmt.Errorf("%w: time_limit_minutes must be positive", ErrInvalidFixture)
	case t.PassingScorePercent < 0 || t.PassingScorePercent > 100:
		return fmt.Errorf("%w: passing_score_percent must be within 0..100", ErrInvalidFixture)
	case len(t.Questions) == 0:
		return fmt.Errorf("%w: at least one question is required", ErrInvalidFixture)
	}

	for i, q := range t.Questions {
		switch {
		case strings.TrimSpace(q.Text) == "":
			return fmt.Errorf("%w: question %d has no text", ErrInvalidFixture, i)
		case len(q.Options) < 2:
			return fmt.Errorf("%w: question %d needs at least two options", ErrInvalidFixture, i)
		case q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options):
			return fmt.Errorf("%w: question %d correct index %d out of range", ErrInvalidFixture, i, q.CorrectOptionIndex)
		case q.Points < 1:
			return fmt.Errorf("%w: question %d points must be at least 1", ErrInvalidFixture, i)
		}
	}
	return nil
}
