package inp

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dd0wney/cluso-hydraulics/pkg/logging"
)

// DuplicatePolicy decides what happens when a section header appears twice.
type DuplicatePolicy int

const (
	// MergeDuplicates concatenates the bodies of repeated sections in file order
	MergeDuplicates DuplicatePolicy = iota
	// LastWins keeps only the body of the last occurrence
	LastWins
	// RejectDuplicates fails the load with a ParseError
	RejectDuplicates
)

func (p DuplicatePolicy) String() string {
	switch p {
	case MergeDuplicates:
		return "merge"
	case LastWins:
		return "last-wins"
	case RejectDuplicates:
		return "reject"
	default:
		return "unknown"
	}
}

// ParseDuplicatePolicy parses merge, last-wins or reject.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch strings.ToLower(s) {
	case "", "merge":
		return MergeDuplicates, nil
	case "last-wins", "lastwins", "last":
		return LastWins, nil
	case "reject":
		return RejectDuplicates, nil
	}
	return MergeDuplicates, fmt.Errorf("unknown duplicate section policy %q", s)
}

// Line is one data line with its comment stripped
type Line struct {
	No     int
	Text   string
	Fields []string
	// Comment holds the trailing ";..." text, or the full-line comment
	// preceding it; curves are typed from it
	Comment string
}

// section collects the lines under one header name
type section struct {
	name        string
	header      int // line number of the first header
	occurrences int
	lines       []Line
}

// sectionSet is the scanned file: sections by name plus first-seen order
type sectionSet struct {
	byName map[string]*section
	order  []string
}

func (s *sectionSet) get(name string) *section {
	return s.byName[name]
}

// scan splits r into sections, applying the duplicate policy as headers repeat.
func scan(r io.Reader, policy DuplicatePolicy, logger logging.Logger) (*sectionSet, error) {
	set := &sectionSet{byName: map[string]*section{}}
	var cur *section
	pendingComment := ""

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	no := 0
	for sc.Scan() {
		no++
		raw := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if raw == "" {
			continue
		}

		if strings.HasPrefix(raw, "[") {
			end := strings.Index(raw, "]")
			if end < 0 {
				return nil, &ParseError{Line: no, Text: raw, Msg: "unterminated section header"}
			}
			name := strings.ToUpper(strings.TrimSpace(raw[1:end]))
			pendingComment = ""
			if name == "END" {
				break
			}
			existing, seen := set.byName[name]
			if !seen {
				cur = &section{name: name, header: no, occurrences: 1}
				set.byName[name] = cur
				set.order = append(set.order, name)
				continue
			}

			existing.occurrences++
			switch policy {
			case RejectDuplicates:
				return nil, &ParseError{Line: no, Section: name, Text: raw,
					Msg: fmt.Sprintf("section repeats the header on line %d", existing.header), Cause: ErrDuplicateSection}
			case LastWins:
				existing.lines = existing.lines[:0]
			}
			logger.Warn("duplicate section",
				logging.Section(name),
				logging.Int("line", no),
				logging.String("policy", policy.String()))
			cur = existing
			continue
		}

		text, comment, _ := strings.Cut(raw, ";")
		text = strings.TrimSpace(text)
		if text == "" {
			// a full-line comment types the next curve, e.g. ";PUMP: Pump Curve"
			pendingComment = strings.TrimSpace(comment)
			continue
		}
		if cur == nil {
			return nil, &ParseError{Line: no, Text: raw, Msg: "line outside any section", Cause: ErrOrphanLine}
		}
		c := strings.TrimSpace(comment)
		if c == "" {
			c = pendingComment
		}
		cur.lines = append(cur.lines, Line{No: no, Text: text, Fields: strings.Fields(text), Comment: c})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}
	return set, nil
}
