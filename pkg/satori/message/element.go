// Package message implements the Satori message element markup: a
// bidirectional codec between the wire's tag-based text format
// (e.g. `<at id="123"/>Hello<b>world</b>`) and an ordered sequence
// of typed segments.
package message

import (
	"sort"
	"strings"
)

// Element is one node of the parsed markup tree. A text node has an
// empty Tag and its content in Text; every other node carries a tag
// name, decoded attributes and child nodes.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Children []*Element
	Text     string

	selfClosed bool
}

// Escape replaces the characters that delimit markup in text content.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// escapeAttr escapes an attribute value, which additionally must not
// contain a raw double quote.
func escapeAttr(s string) string {
	return strings.ReplaceAll(Escape(s), `"`, "&quot;")
}

// Unescape reverses Escape. Unrecognized entity sequences are left as-is.
func Unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// paramCase converts a camelCase attribute key to the kebab-case form
// used on the wire.
func paramCase(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// writeAttrs serializes attributes in deterministic (sorted) order.
// An empty value encodes as a bare key, matching the boolean-true
// convention of the element grammar.
func writeAttrs(b *strings.Builder, attrs map[string]string) {
	if len(attrs) == 0 {
		return
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(paramCase(k))
		if v := attrs[k]; v != "" {
			b.WriteString(`="`)
			b.WriteString(escapeAttr(v))
			b.WriteByte('"')
		}
	}
}

// String renders the element subtree back to wire markup.
func (e *Element) String() string {
	var b strings.Builder
	e.render(&b)
	return b.String()
}

func (e *Element) render(b *strings.Builder) {
	if e.Tag == "" {
		b.WriteString(Escape(e.Text))
		return
	}
	if e.Tag == rawTag {
		b.WriteString(e.Text)
		return
	}
	b.WriteByte('<')
	b.WriteString(e.Tag)
	writeAttrs(b, e.Attrs)
	if len(e.Children) == 0 {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	for _, c := range e.Children {
		c.render(b)
	}
	b.WriteString("</")
	b.WriteString(e.Tag)
	b.WriteByte('>')
}

func isTagNameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// interElementWhitespace reports whether a text run is pure formatting
// whitespace between elements (whitespace spanning a line break) rather
// than message content. Such runs are dropped at parse time.
func interElementWhitespace(s string) bool {
	if strings.TrimSpace(s) != "" {
		return false
	}
	return strings.ContainsAny(s, "\n\r")
}

// parseElements parses markup into a forest of elements. The parser is
// deliberately forgiving: a lone '<' that does not begin a tag is taken
// as text, a close tag with no matching open tag is dropped, and tags
// still open at end of input are closed implicitly.
func parseElements(src string) []*Element {
	root := &Element{Tag: "\x00root"}
	stack := []*Element{root}
	top := func() *Element { return stack[len(stack)-1] }

	appendText := func(raw string) {
		if raw == "" || interElementWhitespace(raw) {
			return
		}
		parent := top()
		text := Unescape(raw)
		// Merge with a preceding text node so decoded messages never
		// contain adjacent text segments.
		if n := len(parent.Children); n > 0 && parent.Children[n-1].Tag == "" {
			parent.Children[n-1].Text += text
			return
		}
		parent.Children = append(parent.Children, &Element{Text: text})
	}

	i := 0
	textStart := 0
	for i < len(src) {
		if src[i] != '<' {
			i++
			continue
		}
		consumed, closing, el := parseTag(src[i:])
		if consumed == 0 {
			i++ // literal '<'
			continue
		}
		appendText(src[textStart:i])
		if closing {
			// Pop to the nearest matching open tag; unmatched close
			// tags are ignored.
			for d := len(stack) - 1; d > 0; d-- {
				if stack[d].Tag == el.Tag {
					stack = stack[:d]
					break
				}
			}
		} else if el != nil {
			top().Children = append(top().Children, el)
			if !el.selfClosed {
				stack = append(stack, el)
			}
		}
		i += consumed
		textStart = i
	}
	appendText(src[textStart:])
	return root.Children
}

// parseTag attempts to read one tag at the start of s. It returns the
// number of bytes consumed (0 if s does not start a valid tag), whether
// the tag is a closing tag, and the parsed element for open tags.
func parseTag(s string) (consumed int, closing bool, el *Element) {
	// s[0] == '<'
	j := 1
	if j < len(s) && s[j] == '/' {
		closing = true
		j++
	}
	nameStart := j
	for j < len(s) && isTagNameByte(s[j]) {
		j++
	}
	if j == nameStart {
		return 0, false, nil
	}
	name := strings.ToLower(s[nameStart:j])

	if closing {
		for j < len(s) && isSpaceByte(s[j]) {
			j++
		}
		if j >= len(s) || s[j] != '>' {
			return 0, false, nil
		}
		return j + 1, true, &Element{Tag: name}
	}

	el = &Element{Tag: name}
	for {
		for j < len(s) && isSpaceByte(s[j]) {
			j++
		}
		if j >= len(s) {
			return 0, false, nil // unterminated tag, treat '<' as text
		}
		if s[j] == '>' {
			return j + 1, false, el
		}
		if s[j] == '/' {
			if j+1 < len(s) && s[j+1] == '>' {
				el.selfClosed = true
				return j + 2, false, el
			}
			return 0, false, nil
		}
		key, value, n, ok := parseAttr(s[j:])
		if !ok {
			return 0, false, nil
		}
		if el.Attrs == nil {
			el.Attrs = make(map[string]string)
		}
		el.Attrs[key] = value
		j += n
	}
}

// parseAttr reads one attribute: either key="value", key='value', or a
// bare key (boolean form, stored as an empty value).
func parseAttr(s string) (key, value string, consumed int, ok bool) {
	j := 0
	for j < len(s) && s[j] != '=' && s[j] != '>' && s[j] != '/' && !isSpaceByte(s[j]) {
		j++
	}
	if j == 0 {
		return "", "", 0, false
	}
	key = strings.ToLower(s[:j])
	if j >= len(s) || s[j] != '=' {
		return key, "", j, true
	}
	j++ // '='
	if j >= len(s) || (s[j] != '"' && s[j] != '\'') {
		return "", "", 0, false
	}
	quote := s[j]
	j++
	valStart := j
	for j < len(s) && s[j] != quote {
		j++
	}
	if j >= len(s) {
		return "", "", 0, false
	}
	return key, Unescape(s[valStart:j]), j + 1, true
}
