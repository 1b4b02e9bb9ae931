// Copyright 2022, Pulumi Corporation.  All rights reserved.

package fsh

import (
	"regexp"
	"strings"
)

// Declaration keywords that open a new FSH entity. Alias is included because
// it ends the previous entity even though it declares no completable name.
var headerPattern = regexp.MustCompile(
	`^\s*(Alias|Profile|Extension|Logical|Resource|Instance|Invariant|ValueSet|CodeSystem|RuleSet|Mapping)\s*:(.*)$`)

// A Declaration is a named entity found in FSH text.
type Declaration struct {
	Name string
	Kind EntityKind
	// 0-based line of the declaration header.
	Line int
}

// parseHeader reports the keyword and the text after the colon if line is a
// declaration header.
func parseHeader(line string) (keyword, rest string, ok bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// declaredName extracts the entity name from the text following a header
// keyword. Parameterized rule sets carry their parameters in parentheses
// directly after the name.
func declaredName(rest string) string {
	rest = strings.TrimSpace(rest)
	if i := strings.IndexAny(rest, " \t("); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// ScanDeclarations finds every entity declaration in text, in order.
// Declarations inside comments and multi-line strings are ignored.
func ScanDeclarations(text string) []Declaration {
	var decls []Declaration
	var st scanState
	for i, line := range strings.Split(text, "\n") {
		code := st.strip(strings.TrimSuffix(line, "\r"))
		keyword, rest, ok := parseHeader(code)
		if !ok {
			continue
		}
		kind, ok := ParseEntityKind(keyword)
		if !ok {
			continue
		}
		name := declaredName(rest)
		if name == "" {
			continue
		}
		decls = append(decls, Declaration{Name: name, Kind: kind, Line: i})
	}
	return decls
}

// scanState carries comment and string state across lines.
type scanState struct {
	inBlockComment bool
	inMultiline    bool
}

// strip blanks out comments and string literals in line. Blanked regions are
// replaced by a single space so that tokens on either side stay separate.
func (s *scanState) strip(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); {
		switch {
		case s.inBlockComment:
			end := strings.Index(line[i:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 2
			s.inBlockComment = false
			b.WriteByte(' ')
		case s.inMultiline:
			end := strings.Index(line[i:], `"""`)
			if end < 0 {
				return b.String()
			}
			i += end + 3
			s.inMultiline = false
			b.WriteByte(' ')
		case strings.HasPrefix(line[i:], "//"):
			return b.String()
		case strings.HasPrefix(line[i:], "/*"):
			s.inBlockComment = true
			i += 2
		case strings.HasPrefix(line[i:], `"""`):
			s.inMultiline = true
			i += 3
		case line[i] == '"':
			i = skipString(line, i+1)
			b.WriteByte(' ')
		default:
			b.WriteByte(line[i])
			i++
		}
	}
	return b.String()
}

// skipString returns the index just past the closing quote of a string that
// starts before i. Unterminated strings run to the end of the line.
func skipString(line string, i int) int {
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return len(line)
}
