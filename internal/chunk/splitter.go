package chunk

import (
	"errors"
	"strings"
)

// DefaultSeparators is tried in order; "" splits between runes.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Splitter breaks text into overlapping pieces of at most Size runes,
// preferring the earliest separator that occurs in the text.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// NewSplitter validates size and overlap.
func NewSplitter(size, overlap int, separators []string) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk size must be > 0")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk overlap must be in [0, size)")
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{size: size, overlap: overlap, separators: separators}, nil
}

// Split returns the pieces of text. Equal input always yields equal output.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}

	var out, pending []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if runeLen(p) < s.size {
			pending = append(pending, p)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending, sep)...)
	}
	return out
}

// merge packs parts into pieces of at most size runes, carrying up to
// overlap runes of trailing parts into the next piece.
func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := runeLen(sep)
	var (
		out     []string
		current []string
		total   int
	)
	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}
	for _, p := range parts {
		n := runeLen(p)
		if total+n+joinCost() > s.size && len(current) > 0 {
			if piece := strings.TrimSpace(strings.Join(current, sep)); piece != "" {
				out = append(out, piece)
			}
			for total > s.overlap || (total > 0 && total+n+joinCost() > s.size) {
				drop := runeLen(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if piece := strings.TrimSpace(strings.Join(current, sep)); piece != "" {
		out = append(out, piece)
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
