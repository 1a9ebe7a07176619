package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Selection modes.
const (
	ModeRange   = "range"
	ModeIndices = "indices"
)

// Selection picks subjects by 1-based position in the sorted subject list.
type Selection struct {
	Mode    string `yaml:"mode"`
	Start   int    `yaml:"start"`
	End     int    `yaml:"end"`
	Indices string `yaml:"indices"`
}

// Validate checks the mode and, for index lists, that every entry is a number.
func (s Selection) Validate() error {
	switch s.Mode {
	case ModeRange:
		return nil
	case ModeIndices:
		_, err := parseIndices(s.Indices)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, s.Mode)
	}
}

// Resolve returns zero-based subject indices for a list of count subjects.
// Ranges are clamped to [1, count]; listed indices outside it are dropped,
// as are repeats.
func (s Selection) Resolve(count int) ([]int, error) {
	out := []int{}
	switch s.Mode {
	case ModeRange:
		lo, hi := max(1, s.Start), min(count, s.End)
		for i := lo; i <= hi; i++ {
			out = append(out, i-1)
		}
		return out, nil
	case ModeIndices:
		idx, err := parseIndices(s.Indices)
		if err != nil {
			return nil, err
		}
		seen := map[int]bool{}
		for _, i := range idx {
			if i < 1 || i > count || seen[i] {
				continue
			}
			seen[i] = true
			out = append(out, i-1)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, s.Mode)
	}
}

func parseIndices(list string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: index %q", ErrBadSelection, f)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s Selection) String() string {
	if s.Mode == ModeIndices {
		return "indices " + s.Indices
	}
	return fmt.Sprintf("range %d-%d", s.Start, s.End)
}
