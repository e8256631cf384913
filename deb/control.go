package deb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Paragraph is a single stanza of a Debian control file: an ordered list of
// fields. Field names are matched case-insensitively, as required by policy.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#syntax-of-control-files
type Paragraph struct {
	keys   []string
	values map[string]string
}

// NewParagraph returns an empty paragraph.
func NewParagraph() *Paragraph {
	return &Paragraph{values: make(map[string]string)}
}

// Get returns the value of a field, and whether it is present.
func (p *Paragraph) Get(key ControlField) (string, bool) {
	v, ok := p.values[strings.ToLower(string(key))]
	return v, ok
}

// Value returns the value of a field or the empty string.
func (p *Paragraph) Value(key ControlField) string {
	v, _ := p.Get(key)
	return v
}

// Set adds or replaces a field. New fields are appended at the end.
func (p *Paragraph) Set(key ControlField, value string) {
	k := strings.ToLower(string(key))
	if _, ok := p.values[k]; !ok {
		p.keys = append(p.keys, string(key))
	}
	p.values[k] = value
}

// Delete removes a field.
func (p *Paragraph) Delete(key ControlField) {
	k := strings.ToLower(string(key))
	if _, ok := p.values[k]; !ok {
		return
	}
	delete(p.values, k)
	for i, existing := range p.keys {
		if strings.ToLower(existing) == k {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in file order.
func (p *Paragraph) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of fields.
func (p *Paragraph) Len() int { return len(p.keys) }

// String renders the paragraph back in control file syntax.
// Multiline values keep their continuation lines.
func (p *Paragraph) String() string {
	var b strings.Builder
	for _, k := range p.keys {
		v := p.values[strings.ToLower(k)]
		if strings.HasPrefix(v, "\n") {
			fmt.Fprintf(&b, "%s:%s\n", k, v)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	return b.String()
}

// ParseParagraph parses the content of a single control stanza.
// It handles multiline values (folded fields) and ignores comment lines.
func ParseParagraph(content string) (*Paragraph, error) {
	paras, err := ReadParagraphs(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	switch len(paras) {
	case 0:
		return NewParagraph(), nil
	case 1:
		return paras[0], nil
	}
	return nil, fmt.Errorf("expected a single paragraph, found %d", len(paras))
}

// ReadParagraphs parses a file made of several stanzas separated by blank
// lines, such as a Packages index or the dpkg status database.
func ReadParagraphs(r io.Reader) ([]*Paragraph, error) {
	var paras []*Paragraph
	var current *Paragraph
	var currentKey string
	var currentValue strings.Builder

	flush := func() {
		if current != nil && currentKey != "" {
			current.Set(ControlField(currentKey), strings.TrimRight(currentValue.String(), " \t"))
		}
		currentKey = ""
		currentValue.Reset()
	}

	scanner := bufio.NewScanner(r)
	// Increase buffer for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == "":
			flush()
			if current != nil {
				paras = append(paras, current)
				current = nil
			}
		case strings.HasPrefix(line, "#"):
			// comment
		case strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t"):
			if currentKey == "" {
				return nil, fmt.Errorf("line %d: continuation line without a field", lineNo)
			}
			currentValue.WriteString("\n" + line)
		default:
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("line %d: missing ':' in %q", lineNo, line)
			}
			flush()
			if current == nil {
				current = NewParagraph()
			}
			currentKey = strings.TrimSpace(parts[0])
			currentValue.WriteString(strings.TrimSpace(parts[1]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if current != nil {
		paras = append(paras, current)
	}
	return paras, nil
}

// splitList splits a comma-separated string into a slice of strings, trimming whitespace from each element.
// It returns nil if the input string is empty.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var res []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
