package catalogimport

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Record is one logical catalog entry reassembled from one or more pasted lines.
type Record struct {
	// Line is the 1-based index of the first physical line.
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Columns []string `json:"columns"`
}

// Column returns the i-th trimmed column, or "" when the record is shorter.
func (r Record) Column(i int) string {
	if i < 0 || i >= len(r.Columns) {
		return ""
	}
	return r.Columns[i]
}

const columnDelimiter = "\t"

// Lines shorter than this are assumed to be wrapped fragments of the previous record.
const minStandaloneLength = 30

var (
	recordStartPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)*(?:\s*\(\+\))?|\d+(?:\.\d+)+[.\-][0-9A-Za-z]*)\s`)
	spacedCodePattern  = regexp.MustCompile(`^(\d+(?:\.\d+)*(?:\s*\(\+\))?)\s+(.+)$`)
)

// Reconstruct splits pasted text into logical records, re-joining the lines a
// spreadsheet paste wrapped. Blank lines are dropped; nothing else is.
func Reconstruct(text string) []Record {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var records []Record
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if startsRecord(line) || len(records) == 0 || !isContinuation(line) {
			records = append(records, Record{Line: i + 1, Text: line})
			continue
		}
		last := &records[len(records)-1]
		last.Text = last.Text + " " + strings.TrimLeft(line, " ")
	}

	for i := range records {
		records[i].Columns = splitColumns(records[i].Text)
	}
	return records
}

func startsRecord(line string) bool {
	return recordStartPattern.MatchString(strings.TrimLeft(line, " "))
}

func isContinuation(line string) bool {
	trimmed := strings.TrimSpace(line)
	if hasInclusionPrefix(trimmed) {
		return true
	}
	for _, b := range bulletPrefixes {
		if strings.HasPrefix(trimmed, b) {
			return true
		}
	}
	if strings.HasPrefix(trimmed, "(") {
		return true
	}
	if first, _ := utf8.DecodeRuneInString(trimmed); unicode.IsLower(first) {
		return true
	}
	if containsAny(strings.ToUpper(trimmed), labTestKeywords) {
		return true
	}
	return utf8.RuneCountInString(trimmed) < minStandaloneLength
}

func splitColumns(text string) []string {
	parts := strings.Split(text, columnDelimiter)
	columns := make([]string, len(parts))
	for i, p := range parts {
		columns[i] = strings.TrimSpace(p)
	}
	// space-separated paste: "2.1 TERRACERÍAS"
	if len(columns) == 1 {
		if m := spacedCodePattern.FindStringSubmatch(columns[0]); m != nil {
			return []string{m[1], strings.TrimSpace(m[2])}
		}
	}
	return columns
}
