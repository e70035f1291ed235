package message

import "strconv"

// Segment is one unit of message content: plain text, a mention, a
// media reference, a styled or structural container, or an unknown
// element preserved verbatim. The set of implementations is closed;
// tags outside the standard grammar decode to Custom.
type Segment interface {
	element() *Element
}

// Text is plain message text. Decoded messages never contain two
// adjacent Text segments.
type Text struct {
	Content string
}

// Raw is pre-rendered markup emitted without escaping. It exists for
// senders composing element strings by hand; decoding never produces it.
type Raw struct {
	Content string
}

// At mentions a user, a role, or everyone (Type "all" or "here").
type At struct {
	ID   string
	Name string
	Role string
	Type string
}

// Sharp references a channel.
type Sharp struct {
	ID   string
	Name string
}

// Link is a hyperlink; Children hold the display content, if any.
type Link struct {
	Href     string
	Children Message
}

// Image is an image resource.
type Image struct {
	Src     string
	Title   string
	Cache   bool
	Timeout int64
	Width   uint32
	Height  uint32
}

// Audio is an audio resource.
type Audio struct {
	Src      string
	Title    string
	Cache    bool
	Timeout  int64
	Duration float64
	Poster   string
}

// Video is a video resource.
type Video struct {
	Src      string
	Title    string
	Cache    bool
	Timeout  int64
	Width    uint32
	Height   uint32
	Duration float64
	Poster   string
}

// File is a generic file resource.
type File struct {
	Src     string
	Title   string
	Cache   bool
	Timeout int64
	Poster  string
}

// StyleKind selects the decoration applied by a Style container. The
// constants are the canonical wire tags; alias tags (strong, em, ins,
// del, spoiler, ...) normalize to these on decode.
type StyleKind string

const (
	Bold          StyleKind = "b"
	Italic        StyleKind = "i"
	Underline     StyleKind = "u"
	Strikethrough StyleKind = "s"
	Spoiler       StyleKind = "spl"
	Code          StyleKind = "code"
	Superscript   StyleKind = "sup"
	Subscript     StyleKind = "sub"
	Paragraph     StyleKind = "p"
)

// Style is a decorated container: bold, italic, code and friends.
// Styles nest, so `<b>123<i>456</i>789</b>` decodes to a Bold style
// holding text, a nested Italic style, and more text.
type Style struct {
	Kind     StyleKind
	Children Message
}

// Br is an explicit line break.
type Br struct{}

// Quote cites another message by id; Children carry quoted content.
type Quote struct {
	ID       string
	Forward  bool
	Children Message
}

// Msg is a nested message container (wire tag "message"), used to
// compose and forward messages.
type Msg struct {
	ID       string
	Forward  bool
	Children Message
}

// Author attributes surrounding content to a user, typically inside a
// forwarded message.
type Author struct {
	ID     string
	Name   string
	Avatar string
}

// Button is an interactive control. Type is "action", "link", or
// "input"; Children hold the label.
type Button struct {
	ID       string
	Type     string
	Href     string
	Text     string
	Theme    string
	Children Message
}

// Custom preserves an element whose tag is outside the standard
// grammar: tag name, raw attributes, and children survive a
// decode/encode round trip untouched.
type Custom struct {
	Tag      string
	Attrs    map[string]string
	Children Message
}

func (t Text) element() *Element { return &Element{Text: t.Content} }

// Raw renders verbatim; the element carries a marker tag consumed by
// the renderer.
func (r Raw) element() *Element { return &Element{Tag: rawTag, Text: r.Content} }

func (a At) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", a.ID)
	putAttr(attrs, "name", a.Name)
	putAttr(attrs, "role", a.Role)
	putAttr(attrs, "type", a.Type)
	return &Element{Tag: "at", Attrs: attrs}
}

func (s Sharp) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", s.ID)
	putAttr(attrs, "name", s.Name)
	return &Element{Tag: "sharp", Attrs: attrs}
}

func (l Link) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "href", l.Href)
	return &Element{Tag: "a", Attrs: attrs, Children: l.Children.elements()}
}

func (i Image) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "src", i.Src)
	putAttr(attrs, "title", i.Title)
	putBoolAttr(attrs, "cache", i.Cache)
	putIntAttr(attrs, "timeout", i.Timeout)
	putUintAttr(attrs, "width", i.Width)
	putUintAttr(attrs, "height", i.Height)
	return &Element{Tag: "img", Attrs: attrs}
}

func (a Audio) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "src", a.Src)
	putAttr(attrs, "title", a.Title)
	putBoolAttr(attrs, "cache", a.Cache)
	putIntAttr(attrs, "timeout", a.Timeout)
	putFloatAttr(attrs, "duration", a.Duration)
	putAttr(attrs, "poster", a.Poster)
	return &Element{Tag: "audio", Attrs: attrs}
}

func (v Video) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "src", v.Src)
	putAttr(attrs, "title", v.Title)
	putBoolAttr(attrs, "cache", v.Cache)
	putIntAttr(attrs, "timeout", v.Timeout)
	putUintAttr(attrs, "width", v.Width)
	putUintAttr(attrs, "height", v.Height)
	putFloatAttr(attrs, "duration", v.Duration)
	putAttr(attrs, "poster", v.Poster)
	return &Element{Tag: "video", Attrs: attrs}
}

func (f File) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "src", f.Src)
	putAttr(attrs, "title", f.Title)
	putBoolAttr(attrs, "cache", f.Cache)
	putIntAttr(attrs, "timeout", f.Timeout)
	putAttr(attrs, "poster", f.Poster)
	return &Element{Tag: "file", Attrs: attrs}
}

func (s Style) element() *Element {
	return &Element{Tag: string(s.Kind), Children: s.Children.elements()}
}

func (Br) element() *Element { return &Element{Tag: "br"} }

func (q Quote) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", q.ID)
	putBoolAttr(attrs, "forward", q.Forward)
	return &Element{Tag: "quote", Attrs: attrs, Children: q.Children.elements()}
}

func (m Msg) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", m.ID)
	putBoolAttr(attrs, "forward", m.Forward)
	return &Element{Tag: "message", Attrs: attrs, Children: m.Children.elements()}
}

func (a Author) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", a.ID)
	putAttr(attrs, "name", a.Name)
	putAttr(attrs, "avatar", a.Avatar)
	return &Element{Tag: "author", Attrs: attrs}
}

func (b Button) element() *Element {
	attrs := map[string]string{}
	putAttr(attrs, "id", b.ID)
	putAttr(attrs, "type", b.Type)
	putAttr(attrs, "href", b.Href)
	putAttr(attrs, "text", b.Text)
	putAttr(attrs, "theme", b.Theme)
	return &Element{Tag: "button", Attrs: attrs, Children: b.Children.elements()}
}

func (c Custom) element() *Element {
	var attrs map[string]string
	if len(c.Attrs) > 0 {
		attrs = make(map[string]string, len(c.Attrs))
		for k, v := range c.Attrs {
			attrs[k] = v
		}
	}
	return &Element{Tag: c.Tag, Attrs: attrs, Children: c.Children.elements()}
}

func putAttr(attrs map[string]string, key, value string) {
	if value != "" {
		attrs[key] = value
	}
}

func putBoolAttr(attrs map[string]string, key string, value bool) {
	if value {
		attrs[key] = ""
	}
}

func putIntAttr(attrs map[string]string, key string, value int64) {
	if value != 0 {
		attrs[key] = strconv.FormatInt(value, 10)
	}
}

func putUintAttr(attrs map[string]string, key string, value uint32) {
	if value != 0 {
		attrs[key] = strconv.FormatUint(uint64(value), 10)
	}
}

func putFloatAttr(attrs map[string]string, key string, value float64) {
	if value != 0 {
		attrs[key] = strconv.FormatFloat(value, 'f', -1, 64)
	}
}

func boolAttr(attrs map[string]string, key string) bool {
	v, ok := attrs[key]
	if !ok {
		return false
	}
	return v != "false" && v != "0"
}

func intAttr(attrs map[string]string, key string) int64 {
	n, _ := strconv.ParseInt(attrs[key], 10, 64)
	return n
}

func uintAttr(attrs map[string]string, key string) uint32 {
	n, _ := strconv.ParseUint(attrs[key], 10, 32)
	return uint32(n)
}

func floatAttr(attrs map[string]string, key string) float64 {
	f, _ := strconv.ParseFloat(attrs[key], 64)
	return f
}
