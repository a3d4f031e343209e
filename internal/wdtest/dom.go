package wdtest

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Element is a node of a fake document. Documents are flat: every element
// is a direct child of the body, or of the form when the document has one.
type Element struct {
	Tag   string
	ID    string
	Name  string
	Class string
	Type  string
	Text  string
	Value string
	Href  string
	// Target "_blank" opens Href in a new window.
	Target string
	// Src is the route loaded into an iframe.
	Src string

	Hidden   bool
	Disabled bool
	// Obscured elements are found and displayed but every click is
	// intercepted.
	Obscured bool
	// Delay keeps the element out of the DOM until this long after the
	// document has loaded.
	Delay time.Duration
	// EnableAfter keeps the element disabled until this long after the
	// document has loaded.
	EnableAfter time.Duration

	handle string
	doc    *Document
	frame  *Document
}

// Attr returns the value of the named attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	var v string
	switch name {
	case "id":
		v = e.ID
	case "name":
		v = e.Name
	case "class":
		v = e.Class
	case "type":
		v = e.Type
	case "value":
		v = e.Value
	case "href":
		v = e.Href
	case "target":
		v = e.Target
	case "src":
		v = e.Src
	}
	return v, v != ""
}

func (e *Element) disabled(now time.Time) bool {
	if e.Disabled {
		return true
	}
	return e.EnableAfter > 0 && e.doc != nil && now.Sub(e.doc.loadedAt) < e.EnableAfter
}

func (e *Element) hasClass(c string) bool {
	for _, f := range strings.Fields(e.Class) {
		if f == c {
			return true
		}
	}
	return false
}

// Document is one page of a Site.
type Document struct {
	Title string
	// Form, when set, is the action of a GET form wrapping every element.
	Form     string
	Elements []*Element

	url      *url.URL
	loadedAt time.Time
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	for _, e := range d.Elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (d *Document) live(now time.Time) []*Element {
	var out []*Element
	for _, e := range d.Elements {
		if now.Sub(d.loadedAt) >= e.Delay {
			out = append(out, e)
		}
	}
	return out
}

func (d *Document) formQuery() url.Values {
	q := url.Values{}
	for _, e := range d.Elements {
		if e.Tag == "input" && e.Name != "" && e.Type != "submit" {
			q.Set(e.Name, e.Value)
		}
	}
	return q
}

// HTML renders d for a real browser. Delayed elements are inserted by a
// script after their delay.
func (d *Document) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n", html.EscapeString(d.Title))
	if d.Form != "" {
		fmt.Fprintf(&b, "<form id=\"__form\" action=\"%s\" method=\"get\">\n", html.EscapeString(d.Form))
	}
	var delayed []*Element
	for _, e := range d.Elements {
		if e.Delay > 0 {
			delayed = append(delayed, e)
			continue
		}
		b.WriteString(e.html())
		b.WriteString("\n")
	}
	if d.Form != "" {
		b.WriteString("</form>\n")
	}
	for _, e := range delayed {
		fmt.Fprintf(&b, "<script>setTimeout(function(){document.body.insertAdjacentHTML('beforeend', %q)}, %d)</script>\n",
			e.html(), e.Delay.Milliseconds())
	}
	for _, e := range d.Elements {
		if e.EnableAfter > 0 && e.ID != "" {
			fmt.Fprintf(&b, "<script>setTimeout(function(){var e=document.getElementById(%q);if(e)e.removeAttribute('disabled')}, %d)</script>\n",
				e.ID, e.EnableAfter.Milliseconds())
		}
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func (e *Element) html() string {
	var attrs []string
	add := func(k, v string) {
		if v != "" {
			attrs = append(attrs, fmt.Sprintf("%s=\"%s\"", k, html.EscapeString(v)))
		}
	}
	add("id", e.ID)
	add("name", e.Name)
	add("class", e.Class)
	add("type", e.Type)
	add("value", e.Value)
	add("href", e.Href)
	add("target", e.Target)
	add("src", e.Src)
	if e.Hidden {
		attrs = append(attrs, `style="display:none"`)
	}
	if e.Disabled || e.EnableAfter > 0 {
		attrs = append(attrs, "disabled")
	}
	open := e.Tag
	if len(attrs) > 0 {
		open += " " + strings.Join(attrs, " ")
	}
	if e.Tag == "input" {
		return "<" + open + ">"
	}
	return "<" + open + ">" + html.EscapeString(e.Text) + "</" + e.Tag + ">"
}

// Site maps paths to document builders. Each load builds a fresh document,
// so typed values do not survive navigation.
type Site map[string]func(q url.Values) *Document

func (s Site) load(u *url.URL) *Document {
	// Browsers request "/" for a bare origin.
	if u.Path == "" {
		u.Path = "/"
	}
	build, ok := s[u.Path]
	var d *Document
	if ok {
		d = build(u.Query())
	} else {
		d = &Document{Title: "404 Not Found", Elements: []*Element{{Tag: "h1", Text: "Not Found"}}}
	}
	d.url = u
	d.loadedAt = time.Now()
	for _, e := range d.Elements {
		e.doc = d
	}
	return d
}

var (
	cssPart = regexp.MustCompile(`^(?:#([\w-]+)|\.([\w-]+)|\[([\w-]+)(~?=)(?:"((?:[^"\\]|\\.)*)"|'([^']*)')\])`)
	cssTag  = regexp.MustCompile(`^[a-zA-Z][\w-]*|^\*`)

	xpathExpr = regexp.MustCompile(`^//([a-zA-Z][\w-]*|\*)(?:\[(.+)\])?$`)
	xpathAttr = regexp.MustCompile(`^@([\w-]+)\s*=\s*(?:"([^"]*)"|'([^']*)')$`)
	xpathText = regexp.MustCompile(`^(text\(\)|\.|normalize-space\((?:text\(\)|\.)?\))\s*=\s*(?:"([^"]*)"|'([^']*)')$`)
	xpathHas  = regexp.MustCompile(`^contains\(\s*(text\(\)|\.)\s*,\s*(?:"([^"]*)"|'([^']*)')\s*\)$`)
)

type matcher func(*Element) bool

// compile turns a W3C locator into a matcher. Only the selector subset the
// harness and its tests use is understood; anything else is an invalid
// selector.
func compile(using, value string) (matcher, error) {
	switch using {
	case "css selector":
		return compileCSS(value)
	case "xpath":
		return compileXPath(value)
	case "tag name":
		return func(e *Element) bool { return strings.EqualFold(e.Tag, value) }, nil
	case "link text":
		return func(e *Element) bool { return e.Tag == "a" && strings.TrimSpace(e.Text) == value }, nil
	case "partial link text":
		return func(e *Element) bool { return e.Tag == "a" && strings.Contains(e.Text, value) }, nil
	}
	return nil, fmt.Errorf("unsupported locator strategy %q", using)
}

func compileCSS(sel string) (matcher, error) {
	rest := strings.TrimSpace(sel)
	var ms []matcher
	if tag := cssTag.FindString(rest); tag != "" {
		rest = rest[len(tag):]
		if tag != "*" {
			ms = append(ms, func(e *Element) bool { return strings.EqualFold(e.Tag, tag) })
		}
	}
	for rest != "" {
		m := cssPart.FindStringSubmatch(rest)
		if m == nil {
			return nil, fmt.Errorf("unsupported css selector %q", sel)
		}
		rest = rest[len(m[0]):]
		switch {
		case m[1] != "":
			id := m[1]
			ms = append(ms, func(e *Element) bool { return e.ID == id })
		case m[2] != "":
			c := m[2]
			ms = append(ms, func(e *Element) bool { return e.hasClass(c) })
		default:
			attr, op, want := m[3], m[4], m[6]
			if m[5] != "" {
				want = strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(m[5])
			}
			ms = append(ms, func(e *Element) bool {
				if op == "~=" && attr == "class" {
					return e.hasClass(want)
				}
				v, _ := e.Attr(attr)
				if op == "~=" {
					for _, f := range strings.Fields(v) {
						if f == want {
							return true
						}
					}
					return false
				}
				return v == want
			})
		}
	}
	if len(ms) == 0 && strings.TrimSpace(sel) != "*" {
		return nil, fmt.Errorf("empty css selector")
	}
	return all(ms), nil
}

func compileXPath(expr string) (matcher, error) {
	m := xpathExpr.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, fmt.Errorf("unsupported xpath %q", expr)
	}
	tag, pred := m[1], strings.TrimSpace(m[2])
	ms := []matcher{}
	if tag != "*" {
		ms = append(ms, func(e *Element) bool { return strings.EqualFold(e.Tag, tag) })
	}
	if pred == "" {
		return all(ms), nil
	}

	quoted := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	switch {
	case xpathAttr.MatchString(pred):
		p := xpathAttr.FindStringSubmatch(pred)
		attr, want := p[1], quoted(p[2], p[3])
		ms = append(ms, func(e *Element) bool { v, _ := e.Attr(attr); return v == want })
	case xpathText.MatchString(pred):
		p := xpathText.FindStringSubmatch(pred)
		fn, want := p[1], quoted(p[2], p[3])
		ms = append(ms, func(e *Element) bool {
			if strings.HasPrefix(fn, "normalize-space") {
				return strings.Join(strings.Fields(e.Text), " ") == want
			}
			return e.Text == want
		})
	case xpathHas.MatchString(pred):
		p := xpathHas.FindStringSubmatch(pred)
		want := quoted(p[2], p[3])
		ms = append(ms, func(e *Element) bool { return strings.Contains(e.Text, want) })
	default:
		return nil, fmt.Errorf("unsupported xpath predicate %q", pred)
	}
	return all(ms), nil
}

func all(ms []matcher) matcher {
	return func(e *Element) bool {
		for _, m := range ms {
			if !m(e) {
				return false
			}
		}
		return true
	}
}
