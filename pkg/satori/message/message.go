package message

import "strings"

// rawTag marks elements produced by Raw segments, which render
// verbatim. The NUL prefix keeps it out of the parseable tag space.
const rawTag = "\x00raw"

// Message is an ordered sequence of segments. Order is render order
// and is preserved exactly by Parse and String.
type Message []Segment

// String encodes the message into wire element markup. The output is
// canonical: alias tags are never emitted and attributes appear in a
// deterministic order.
func (m Message) String() string {
	var b strings.Builder
	for _, s := range m {
		s.element().render(&b)
	}
	return b.String()
}

func (m Message) elements() []*Element {
	if len(m) == 0 {
		return nil
	}
	els := make([]*Element, len(m))
	for i, s := range m {
		els[i] = s.element()
	}
	return els
}

// Plain returns the concatenated plain text content. Style containers
// are transparent; structural containers (quote, message, button, link)
// contribute nothing.
func (m Message) Plain() string {
	var b strings.Builder
	m.plain(&b)
	return b.String()
}

func (m Message) plain(b *strings.Builder) {
	for _, s := range m {
		switch v := s.(type) {
		case Text:
			b.WriteString(v.Content)
		case Raw:
			b.WriteString(v.Content)
		case Br:
			b.WriteByte('\n')
		case Style:
			v.Children.plain(b)
		}
	}
}

// Parse decodes wire element markup into a Message. Parsing is total:
// unknown tags become Custom segments, stray angle brackets become
// text, and unclosed tags are closed implicitly at end of input.
// Parse(m.String()) reproduces m for any message built from canonical
// segments.
func Parse(src string) Message {
	return fromElements(parseElements(src))
}

func fromElements(els []*Element) Message {
	if len(els) == 0 {
		return nil
	}
	m := make(Message, 0, len(els))
	for _, el := range els {
		m = append(m, fromElement(el))
	}
	return m
}

// styleTags maps every accepted style tag, canonical or alias, to its
// StyleKind.
var styleTags = map[string]StyleKind{
	"b": Bold, "strong": Bold, "bold": Bold,
	"i": Italic, "em": Italic, "italic": Italic,
	"u": Underline, "ins": Underline, "underline": Underline,
	"s": Strikethrough, "del": Strikethrough, "strike": Strikethrough,
	"spl": Spoiler, "spoiler": Spoiler,
	"code": Code,
	"sup": Superscript, "superscript": Superscript,
	"sub": Subscript, "subscript": Subscript,
	"p": Paragraph, "paragraph": Paragraph,
}

func fromElement(el *Element) Segment {
	if el.Tag == "" {
		return Text{Content: el.Text}
	}
	if kind, ok := styleTags[el.Tag]; ok {
		return Style{Kind: kind, Children: fromElements(el.Children)}
	}
	attrs := el.Attrs
	switch el.Tag {
	case "at":
		return At{ID: attrs["id"], Name: attrs["name"], Role: attrs["role"], Type: attrs["type"]}
	case "sharp":
		return Sharp{ID: attrs["id"], Name: attrs["name"]}
	case "a", "link":
		return Link{Href: attrs["href"], Children: fromElements(el.Children)}
	case "img", "image":
		return Image{
			Src:     attrs["src"],
			Title:   attrs["title"],
			Cache:   boolAttr(attrs, "cache"),
			Timeout: intAttr(attrs, "timeout"),
			Width:   uintAttr(attrs, "width"),
			Height:  uintAttr(attrs, "height"),
		}
	case "audio":
		return Audio{
			Src:      attrs["src"],
			Title:    attrs["title"],
			Cache:    boolAttr(attrs, "cache"),
			Timeout:  intAttr(attrs, "timeout"),
			Duration: floatAttr(attrs, "duration"),
			Poster:   attrs["poster"],
		}
	case "video":
		return Video{
			Src:      attrs["src"],
			Title:    attrs["title"],
			Cache:    boolAttr(attrs, "cache"),
			Timeout:  intAttr(attrs, "timeout"),
			Width:    uintAttr(attrs, "width"),
			Height:   uintAttr(attrs, "height"),
			Duration: floatAttr(attrs, "duration"),
			Poster:   attrs["poster"],
		}
	case "file":
		return File{
			Src:     attrs["src"],
			Title:   attrs["title"],
			Cache:   boolAttr(attrs, "cache"),
			Timeout: intAttr(attrs, "timeout"),
			Poster:  attrs["poster"],
		}
	case "br", "newline":
		return Br{}
	case "quote":
		return Quote{ID: attrs["id"], Forward: boolAttr(attrs, "forward"), Children: fromElements(el.Children)}
	case "message":
		return Msg{ID: attrs["id"], Forward: boolAttr(attrs, "forward"), Children: fromElements(el.Children)}
	case "author":
		return Author{ID: attrs["id"], Name: attrs["name"], Avatar: attrs["avatar"]}
	case "button":
		return Button{
			ID:       attrs["id"],
			Type:     attrs["type"],
			Href:     attrs["href"],
			Text:     attrs["text"],
			Theme:    attrs["theme"],
			Children: fromElements(el.Children),
		}
	}
	var copied map[string]string
	if len(attrs) > 0 {
		copied = make(map[string]string, len(attrs))
		for k, v := range attrs {
			copied[k] = v
		}
	}
	return Custom{Tag: el.Tag, Attrs: copied, Children: fromElements(el.Children)}
}
