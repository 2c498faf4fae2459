package statement

import (
	"bytes"
	"encoding/csv"
	"io"
)

var delimiterCandidates = []rune{',', ';', '\t', '|'}

// csvSource reads one record per physical line. A quoted field never spans
// lines, so an unclosed quote cannot absorb the rows that follow it.
type csvSource struct {
	lines [][]byte
	pos   int
	comma rune
}

func newCSVSource(text []byte, delimiter string) *csvSource {
	comma := sniffDelimiter(text)
	if d := []rune(delimiter); len(d) == 1 {
		comma = d[0]
	}
	lines := bytes.Split(text, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}
	return &csvSource{lines: lines, comma: comma}
}

func (s *csvSource) next() ([]string, int, error) {
	for s.pos < len(s.lines) {
		line := s.lines[s.pos]
		s.pos++
		if len(line) == 0 {
			continue
		}
		record, err := s.parseLine(line)
		if err != nil {
			return nil, s.pos, &csv.ParseError{StartLine: s.pos, Line: s.pos, Err: err}
		}
		return record, s.pos, nil
	}
	return nil, 0, io.EOF
}

func (s *csvSource) parseLine(line []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(dropUnclosedQuote(line, s.comma)))
	r.Comma = s.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	record, err := r.Read()
	if err == io.EOF {
		return []string{""}, nil
	}
	return record, err
}

func (s *csvSource) close() error { return nil }

// dropUnclosedQuote removes the opening quote of a field whose quoting is
// never closed on this line. Other lines are returned unchanged.
func dropUnclosedQuote(line []byte, comma rune) []byte {
	sep := byte(comma)
	open := -1
	fieldStart := true
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case open >= 0:
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					continue
				}
				open = -1
			}
		case c == '"' && fieldStart:
			open = i
		}
		fieldStart = open < 0 && c == sep
	}
	if open < 0 {
		return line
	}
	out := make([]byte, 0, len(line)-1)
	out = append(out, line[:open]...)
	return append(out, line[open+1:]...)
}

// sniffDelimiter picks the candidate that occurs most often on the first
// non-empty line, falling back to a comma.
func sniffDelimiter(text []byte) rune {
	var first []byte
	for _, line := range bytes.Split(text, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			first = line
			break
		}
	}
	best, bestCount := ',', 0
	for _, d := range delimiterCandidates {
		if n := bytes.Count(first, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
