package varpath

import (
	"fmt"
	"slices"
	"strings"
)

// String serializes the path into its canonical representation.
func (p Path) String() string {
	var sb strings.Builder
	for i, segment := range p.Segments {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			sb.WriteString(fmt.Sprintf("[%d]", segment.Index))
		}
	}
	return sb.String()
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.Segments, other.Segments)
}

// Indexed reports whether any segment addresses a single element.
func (p Path) Indexed() bool {
	for _, s := range p.Segments {
		if s.HasIndex() {
			return true
		}
	}
	return false
}

// Join builds a dotted path from its parts, skipping empty ones.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// Split returns the first segment of a dotted path and the remainder.
func Split(path string) (head, rest string) {
	head, rest, _ = strings.Cut(path, ".")
	return head, rest
}

// Relative strips the scope prefix from a full path. The boolean is false if
// path does not live under scope.
func Relative(scope, path string) (string, bool) {
	if scope == "" {
		return path, true
	}
	if !strings.HasPrefix(path, scope+".") {
		return "", false
	}
	return path[len(scope)+1:], true
}
