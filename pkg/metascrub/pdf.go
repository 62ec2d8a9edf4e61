package metascrub

import (
	"bytes"
	"errors"
	"strings"
)

// PDF scrubbing blanks Info dictionary values in place instead of rewriting
// the document: every byte offset is preserved, so the cross-reference table
// stays valid without re-parsing the whole file.

var pdfAuthorKeys = []string{"Author", "Creator", "Producer", "Title", "Subject", "Keywords"}
var pdfDateKeys = []string{"CreationDate", "ModDate"}

// pdfValue locates the literal string value of one Info key.
type pdfValue struct {
	key   string
	start int // first byte inside the parentheses
	end   int // byte after the last value byte
}

// findPDFValues scans for "/Key (value)" occurrences. Parenthesis nesting
// and backslash escapes follow the literal-string rules of the format.
func findPDFValues(data []byte, keys []string) []pdfValue {
	var values []pdfValue
	for _, key := range keys {
		needle := []byte("/" + key)
		offset := 0
		for {
			idx := bytes.Index(data[offset:], needle)
			if idx < 0 {
				break
			}
			pos := offset + idx + len(needle)
			offset = pos

			// The key must end here, not be a prefix of a longer name.
			if pos < len(data) && isPDFNameChar(data[pos]) {
				continue
			}
			for pos < len(data) && (data[pos] == ' ' || data[pos] == '\r' || data[pos] == '\n' || data[pos] == '\t') {
				pos++
			}
			if pos >= len(data) || data[pos] != '(' {
				continue
			}

			start := pos + 1
			depth := 1
			i := start
			for i < len(data) && depth > 0 {
				switch data[i] {
				case '\\':
					i++
				case '(':
					depth++
				case ')':
					depth--
				}
				i++
			}
			if depth != 0 {
				continue
			}
			values = append(values, pdfValue{key: key, start: start, end: i - 1})
			offset = i
		}
	}
	return values
}

func isPDFNameChar(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func analyzePDF(path string, data []byte) (*Report, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, errors.New("invalid PDF: missing header")
	}

	report := &Report{}
	seen := map[string]bool{}
	all := append(append([]string{}, pdfAuthorKeys...), pdfDateKeys...)
	for _, v := range findPDFValues(data, all) {
		if seen[v.key] {
			continue
		}
		seen[v.key] = true

		value := strings.TrimSpace(string(data[v.start:v.end]))
		if value == "" {
			continue
		}
		if len(value) > 120 {
			value = value[:120] + "..."
		}
		report.RawTags = append(report.RawTags, Entry{Key: v.key, Value: value})

		switch v.key {
		case "Author":
			report.HasAuthor = true
		case "Creator", "Producer":
			report.HasAuthor = true
			if report.SoftwareInfo == "" {
				report.SoftwareInfo = value
			}
		case "CreationDate":
			report.CreationDate = value
		}
	}
	return report, nil
}

// scrubPDF overwrites the selected Info values with spaces. Blanking keeps
// the string length identical, which is what preserves the xref offsets.
func scrubPDF(data []byte, opts Options) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, errors.New("invalid PDF: missing header")
	}

	var keys []string
	if opts.Author {
		keys = append(keys, pdfAuthorKeys...)
	}
	if opts.Date {
		keys = append(keys, pdfDateKeys...)
	}

	out := make([]byte, len(data))
	copy(out, data)
	for _, v := range findPDFValues(out, keys) {
		for i := v.start; i < v.end; i++ {
			out[i] = ' '
		}
	}
	return out, nil
}
