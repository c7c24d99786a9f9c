package insights

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// HighlightSet is an externally supplied set of event IDs. Membership is an
// exact, case-sensitive match.
type HighlightSet map[string]struct{}

func (h HighlightSet) Contains(id string) bool {
	_, ok := h[id]
	return ok
}

// ParseHighlightIDs reads newline-delimited IDs. Lines are trimmed; blank
// lines and lines starting with '#' are skipped.
func ParseHighlightIDs(r io.Reader) (HighlightSet, error) {
	set := HighlightSet{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read highlight ids: %w", err)
	}
	return set, nil
}
