package varpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidName is returned for names that do not follow the naming rules.
var ErrInvalidName = errors.New("invalid name")

var (
	varNameRegex    = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*(:[_a-zA-Z][_a-zA-Z0-9]*)*$`)
	systemNameRegex = regexp.MustCompile(`^[_a-zA-Z][_a-zA-Z0-9]*$`)
	segmentRegex    = regexp.MustCompile(`^([_a-zA-Z][_a-zA-Z0-9:]*)(?:\[(\d+)\])?$`)
)

// ValidateVarName checks a variable name declared on a component.
func ValidateVarName(name string) error {
	if !varNameRegex.MatchString(name) {
		return fmt.Errorf("%w: variable %q must match %s", ErrInvalidName, name, varNameRegex.String())
	}
	return nil
}

// ValidateSystemName checks the name of a child added to a group.
func ValidateSystemName(name string) error {
	if !systemNameRegex.MatchString(name) {
		return fmt.Errorf("%w: system %q must be an identifier", ErrInvalidName, name)
	}
	return nil
}

// Parse creates a Path from its canonical string representation.
func Parse(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("%w: path cannot be empty", ErrInvalidName)
	}

	var p Path
	for _, segmentStr := range strings.Split(raw, ".") {
		if segmentStr == "" {
			return Path{}, fmt.Errorf("%w: path %q contains empty segment", ErrInvalidName, raw)
		}

		matches := segmentRegex.FindStringSubmatch(segmentStr)
		if matches == nil {
			return Path{}, fmt.Errorf("%w: invalid path segment %q", ErrInvalidName, segmentStr)
		}

		segment := NewSegment(matches[1])
		if matches[2] != "" {
			index, err := strconv.Atoi(matches[2])
			if err != nil {
				// Unreachable due to regex `\d+`
				return Path{}, fmt.Errorf("internal error parsing index: %w", err)
			}
			segment.Index = index
		}
		p.Segments = append(p.Segments, segment)
	}
	return p, nil
}
