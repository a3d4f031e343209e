// Package wdtest exercises implementations of webdriver.WebDriver. It holds a
// fake W3C WebDriver server that drives an in-memory Site, and a set of
// common tests that any driver (the fake, a real browser through
// chromedriver, or the CDP backend) is expected to pass.
package wdtest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/wanmail/webdriver"
)

// Server is a fake W3C WebDriver remote end. It is safe for concurrent use,
// though a session models a single browser like a real driver does.
type Server struct {
	*httptest.Server

	site Site

	mu       sync.Mutex
	sessions map[string]*session
	last     *session
	seq      int
}

type session struct {
	id       string
	windows  []*window
	current  *window
	cookies  []webdriver.Cookie
	elements map[string]*Element
	actions  []webdriver.InputSource
	released int
	hovered  *Element
}

type window struct {
	handle string
	doc    *Document
	// frames is the chain of iframe elements entered from the top document.
	frames []*Element
}

// NewServer starts a fake driver whose browser loads pages from site.
func NewServer(site Site) *Server {
	s := &Server{
		site:     site,
		sessions: make(map[string]*session),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("POST /session", s.newSession)
	mux.HandleFunc("DELETE /session/{sid}", s.withSession(s.deleteSession))
	mux.HandleFunc("POST /session/{sid}/url", s.withSession(s.navigate))
	mux.HandleFunc("GET /session/{sid}/url", s.withSession(s.currentURL))
	mux.HandleFunc("GET /session/{sid}/title", s.withSession(s.title))
	mux.HandleFunc("GET /session/{sid}/window", s.withSession(s.windowHandle))
	mux.HandleFunc("GET /session/{sid}/window/handles", s.withSession(s.windowHandles))
	mux.HandleFunc("POST /session/{sid}/window", s.withSession(s.switchWindow))
	mux.HandleFunc("POST /session/{sid}/frame", s.withSession(s.switchFrame))
	mux.HandleFunc("POST /session/{sid}/element", s.withSession(s.findElement))
	mux.HandleFunc("POST /session/{sid}/elements", s.withSession(s.findElements))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/click", s.withElement(s.click))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/value", s.withElement(s.sendKeys))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/clear", s.withElement(s.clear))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/text", s.withElement(s.text))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/name", s.withElement(s.tagName))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/enabled", s.withElement(s.enabled))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/displayed", s.withElement(s.displayed))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/attribute/{name}", s.withElement(s.attribute))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/rect", s.withElement(s.rect))
	mux.HandleFunc("GET /session/{sid}/cookie", s.withSession(s.getCookies))
	mux.HandleFunc("DELETE /session/{sid}/cookie", s.withSession(s.deleteCookies))
	mux.HandleFunc("GET /session/{sid}/screenshot", s.withSession(s.screenshot))
	mux.HandleFunc("POST /session/{sid}/actions", s.withSession(s.performActions))
	mux.HandleFunc("DELETE /session/{sid}/actions", s.withSession(s.releaseActions))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, webdriver.UnknownCommand, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
	})
	return mux
}

var errorStatus = map[webdriver.ErrorCode]int{
	webdriver.ElementClickIntercepted: http.StatusBadRequest,
	webdriver.ElementNotInteractable:  http.StatusBadRequest,
	webdriver.InvalidArgument:         http.StatusBadRequest,
	webdriver.InvalidSelector:         http.StatusBadRequest,
	webdriver.InvalidSessionID:        http.StatusNotFound,
	webdriver.NoSuchElement:           http.StatusNotFound,
	webdriver.NoSuchFrame:             http.StatusNotFound,
	webdriver.NoSuchWindow:            http.StatusNotFound,
	webdriver.StaleElementReference:   http.StatusNotFound,
	webdriver.UnknownCommand:          http.StatusNotFound,
}

func writeValue(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, code webdriver.ErrorCode, msg string) {
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"value": webdriver.Error{
		Err:     code,
		Message: msg,
	}})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, webdriver.InvalidArgument, err.Error())
		return false
	}
	return true
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.sessions[r.PathValue("sid")]
		if !ok {
			writeError(w, webdriver.InvalidSessionID, "session "+r.PathValue("sid")+" does not exist")
			return
		}
		h(w, r, sess)
	}
}

type elementHandler func(w http.ResponseWriter, r *http.Request, sess *session, e *Element)

func (s *Server) withElement(h elementHandler) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *session) {
		e, code := sess.element(r.PathValue("eid"))
		if e == nil {
			writeError(w, code, "element "+r.PathValue("eid"))
			return
		}
		h(w, r, sess, e)
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	st := webdriver.Status{Ready: true, Message: "wdtest ready"}
	st.Build.Version = "1.0.0"
	writeValue(w, st)
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Capabilities map[string]interface{} `json:"capabilities"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	sess := &session{
		id:       fmt.Sprintf("session-%d", s.seq),
		elements: make(map[string]*Element),
	}
	sess.current = sess.openWindow(s.blank())
	s.sessions[sess.id] = sess
	s.last = sess

	writeValue(w, map[string]interface{}{
		"sessionId":    sess.id,
		"capabilities": map[string]interface{}{"browserName": "wdtest"},
	})
}

func (s *Server) blank() *Document {
	u, _ := url.Parse("about:blank")
	return &Document{url: u, loadedAt: time.Now()}
}

func (s *Server) deleteSession(w http.ResponseWriter, _ *http.Request, sess *session) {
	delete(s.sessions, sess.id)
	writeValue(w, nil)
}

func (sess *session) openWindow(doc *Document) *window {
	win := &window{
		handle: fmt.Sprintf("%s-window-%d", sess.id, len(sess.windows)+1),
		doc:    doc,
	}
	sess.windows = append(sess.windows, win)
	return win
}

// context returns the document commands currently apply to.
func (win *window) context() *Document {
	if n := len(win.frames); n > 0 {
		return win.frames[n-1].frame
	}
	return win.doc
}

func (sess *session) element(ref string) (*Element, webdriver.ErrorCode) {
	e, ok := sess.elements[ref]
	if !ok {
		return nil, webdriver.NoSuchElement
	}
	if e.doc != sess.current.context() {
		return nil, webdriver.StaleElementReference
	}
	return e, ""
}

func (sess *session) ref(e *Element) map[string]string {
	if e.handle == "" {
		e.handle = fmt.Sprintf("%s-element-%d", sess.id, len(sess.elements)+1)
		sess.elements[e.handle] = e
	}
	return map[string]string{webdriver.ElementKey: e.handle}
}

func (s *Server) load(rawURL string, base *url.URL) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme in %q", rawURL)
	}
	d := s.site.load(u)
	for _, e := range d.Elements {
		if e.Tag == "iframe" && e.Src != "" {
			if e.frame, err = s.load(e.Src, u); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &req) {
		return
	}
	d, err := s.load(req.URL, nil)
	if err != nil {
		writeError(w, webdriver.InvalidArgument, err.Error())
		return
	}
	sess.current.doc = d
	sess.current.frames = nil
	writeValue(w, nil)
}

func (s *Server) currentURL(w http.ResponseWriter, _ *http.Request, sess *session) {
	writeValue(w, sess.current.doc.url.String())
}

func (s *Server) title(w http.ResponseWriter, _ *http.Request, sess *session) {
	writeValue(w, sess.current.doc.Title)
}

func (s *Server) windowHandle(w http.ResponseWriter, _ *http.Request, sess *session) {
	writeValue(w, sess.current.handle)
}

func (s *Server) windowHandles(w http.ResponseWriter, _ *http.Request, sess *session) {
	handles := make([]string, 0, len(sess.windows))
	for _, win := range sess.windows {
		handles = append(handles, win.handle)
	}
	writeValue(w, handles)
}

func (s *Server) switchWindow(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		Handle string `json:"handle"`
	}
	if !decode(w, r, &req) {
		return
	}
	for _, win := range sess.windows {
		if win.handle == req.Handle {
			sess.current = win
			writeValue(w, nil)
			return
		}
	}
	writeError(w, webdriver.NoSuchWindow, "no window "+req.Handle)
}

func (s *Server) switchFrame(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if !decode(w, r, &req) {
		return
	}
	win := sess.current
	if len(req.ID) == 0 || string(req.ID) == "null" {
		win.frames = nil
		writeValue(w, nil)
		return
	}

	var frames []*Element
	for _, e := range win.context().live(time.Now()) {
		if e.Tag == "iframe" && e.frame != nil {
			frames = append(frames, e)
		}
	}

	var index int
	if err := json.Unmarshal(req.ID, &index); err == nil {
		if index < 0 || index >= len(frames) {
			writeError(w, webdriver.NoSuchFrame, fmt.Sprintf("no frame at index %d", index))
			return
		}
		win.frames = append(win.frames, frames[index])
		writeValue(w, nil)
		return
	}

	var ref map[string]string
	if err := json.Unmarshal(req.ID, &ref); err != nil {
		writeError(w, webdriver.InvalidArgument, "frame id must be null, a number or an element")
		return
	}
	e, code := sess.element(ref[webdriver.ElementKey])
	if e == nil {
		writeError(w, code, "frame element")
		return
	}
	if e.Tag != "iframe" || e.frame == nil {
		writeError(w, webdriver.NoSuchFrame, "element is not a frame")
		return
	}
	win.frames = append(win.frames, e)
	writeValue(w, nil)
}

func (s *Server) match(w http.ResponseWriter, r *http.Request, sess *session) ([]*Element, bool) {
	var req struct {
		Using string `json:"using"`
		Value string `json:"value"`
	}
	if !decode(w, r, &req) {
		return nil, false
	}
	m, err := compile(req.Using, req.Value)
	if err != nil {
		writeError(w, webdriver.InvalidSelector, err.Error())
		return nil, false
	}
	var found []*Element
	for _, e := range sess.current.context().live(time.Now()) {
		if m(e) {
			found = append(found, e)
		}
	}
	return found, true
}

func (s *Server) findElement(w http.ResponseWriter, r *http.Request, sess *session) {
	found, ok := s.match(w, r, sess)
	if !ok {
		return
	}
	if len(found) == 0 {
		writeError(w, webdriver.NoSuchElement, "no element matches the locator")
		return
	}
	writeValue(w, sess.ref(found[0]))
}

func (s *Server) findElements(w http.ResponseWriter, r *http.Request, sess *session) {
	found, ok := s.match(w, r, sess)
	if !ok {
		return
	}
	refs := make([]map[string]string, 0, len(found))
	for _, e := range found {
		refs = append(refs, sess.ref(e))
	}
	writeValue(w, refs)
}

func (s *Server) click(w http.ResponseWriter, _ *http.Request, sess *session, e *Element) {
	switch {
	case e.Hidden:
		writeError(w, webdriver.ElementNotInteractable, "element is not displayed")
		return
	case e.Obscured:
		writeError(w, webdriver.ElementClickIntercepted, "another element would receive the click")
		return
	case e.disabled(time.Now()):
		writeValue(w, nil)
		return
	}

	var err error
	switch {
	case e.Tag == "a" && e.Href != "":
		err = s.follow(sess, e.Href, e.Target == "_blank")
	case e.Type == "submit" && e.doc.Form != "":
		err = s.submit(sess, e.doc)
	}
	if err != nil {
		writeError(w, webdriver.UnknownError, err.Error())
		return
	}
	writeValue(w, nil)
}

func (s *Server) follow(sess *session, href string, newWindow bool) error {
	d, err := s.load(href, sess.current.context().url)
	if err != nil {
		return err
	}
	if newWindow {
		sess.openWindow(d)
		return nil
	}
	sess.current.doc = d
	sess.current.frames = nil
	return nil
}

func (s *Server) submit(sess *session, d *Document) error {
	return s.follow(sess, d.Form+"?"+d.formQuery().Encode(), false)
}

func (s *Server) sendKeys(w http.ResponseWriter, r *http.Request, sess *session, e *Element) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if e.Hidden || e.disabled(time.Now()) {
		writeError(w, webdriver.ElementNotInteractable, "element is not reachable by keyboard")
		return
	}
	submit := false
	for _, c := range req.Text {
		if string(c) == webdriver.EnterKey {
			submit = true
			break
		}
		e.Value += string(c)
	}
	if submit && e.doc.Form != "" {
		if err := s.submit(sess, e.doc); err != nil {
			writeError(w, webdriver.UnknownError, err.Error())
			return
		}
	}
	writeValue(w, nil)
}

func (s *Server) clear(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	if e.disabled(time.Now()) {
		writeError(w, webdriver.ElementNotInteractable, "element is disabled")
		return
	}
	e.Value = ""
	writeValue(w, nil)
}

func (s *Server) text(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	if e.Hidden {
		writeValue(w, "")
		return
	}
	writeValue(w, e.Text)
}

func (s *Server) tagName(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	writeValue(w, e.Tag)
}

func (s *Server) enabled(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	writeValue(w, !e.disabled(time.Now()))
}

func (s *Server) displayed(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	writeValue(w, !e.Hidden)
}

func (s *Server) attribute(w http.ResponseWriter, r *http.Request, _ *session, e *Element) {
	if v, ok := e.Attr(r.PathValue("name")); ok {
		writeValue(w, v)
		return
	}
	writeValue(w, nil)
}

func (s *Server) rect(w http.ResponseWriter, _ *http.Request, _ *session, e *Element) {
	for i, el := range e.doc.Elements {
		if el == e {
			writeValue(w, webdriver.Rect{X: 8, Y: float64(8 + 30*i), Width: 200, Height: 24})
			return
		}
	}
	writeValue(w, webdriver.Rect{})
}

func (s *Server) getCookies(w http.ResponseWriter, _ *http.Request, sess *session) {
	cookies := sess.cookies
	if cookies == nil {
		cookies = []webdriver.Cookie{}
	}
	writeValue(w, cookies)
}

func (s *Server) deleteCookies(w http.ResponseWriter, _ *http.Request, sess *session) {
	sess.cookies = nil
	writeValue(w, nil)
}

// screenshotPNG is the image every screenshot returns.
var screenshotPNG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x66, B: 0x99, A: 0xff})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}()

// ScreenshotPNG returns the bytes every fake screenshot decodes to.
func ScreenshotPNG() []byte {
	return append([]byte(nil), screenshotPNG...)
}

func (s *Server) screenshot(w http.ResponseWriter, _ *http.Request, _ *session) {
	writeValue(w, base64.StdEncoding.EncodeToString(screenshotPNG))
}

func (s *Server) performActions(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		Actions []webdriver.InputSource `json:"actions"`
	}
	if !decode(w, r, &req) {
		return
	}
	for _, src := range req.Actions {
		for _, a := range src.Actions {
			if a["type"] != "pointerMove" {
				continue
			}
			origin, ok := a["origin"].(map[string]interface{})
			if !ok {
				continue
			}
			ref, _ := origin[webdriver.ElementKey].(string)
			e, code := sess.element(ref)
			if e == nil {
				writeError(w, code, "pointer origin "+ref)
				return
			}
			if e.Hidden {
				writeError(w, webdriver.ElementNotInteractable, "pointer origin is not displayed")
				return
			}
			sess.hovered = e
		}
	}
	sess.actions = append(sess.actions, req.Actions...)
	writeValue(w, nil)
}

func (s *Server) releaseActions(w http.ResponseWriter, _ *http.Request, sess *session) {
	sess.released++
	writeValue(w, nil)
}

// The methods below inspect or prepare the most recently created session.

func (s *Server) lastSession() *session {
	if s.last == nil {
		panic("wdtest: no session has been created")
	}
	return s.last
}

// OpenWindow loads path in a new window of the latest session, without
// switching to it, and returns the window handle.
func (s *Server) OpenWindow(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lastSession()
	d, err := s.load(path, s.baseURL())
	if err != nil {
		panic(err)
	}
	return sess.openWindow(d).handle
}

func (s *Server) baseURL() *url.URL {
	u, _ := url.Parse(s.URL)
	return u
}

// CurrentWindow returns the active window handle of the latest session.
func (s *Server) CurrentWindow() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession().current.handle
}

// CurrentURL returns the address of the active window of the latest session.
func (s *Server) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession().current.doc.url.String()
}

// Element returns the element with the given id attribute in the document
// the latest session is looking at, or nil.
func (s *Server) Element(id string) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession().current.context().ByID(id)
}

// InFrame reports whether the latest session is inside a frame.
func (s *Server) InFrame() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastSession().current.frames) > 0
}

// AddCookie stores a cookie in the latest session.
func (s *Server) AddCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.lastSession()
	sess.cookies = append(sess.cookies, webdriver.Cookie{Name: name, Value: value, Path: "/"})
}

// CookieCount returns how many cookies the latest session holds.
func (s *Server) CookieCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastSession().cookies)
}

// Actions returns every input source performed in the latest session.
func (s *Server) Actions() []webdriver.InputSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]webdriver.InputSource(nil), s.lastSession().actions...)
}

// Released returns how many times the latest session released input state.
func (s *Server) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession().released
}

// Hovered returns the id attribute of the last element the pointer was moved
// to, or "".
func (s *Server) Hovered() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.lastSession().hovered; e != nil {
		return e.ID
	}
	return ""
}

// Sessions returns the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SiteHandler serves site as HTML for real browsers.
func SiteHandler(site Site) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := site.load(r.URL)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, ok := site[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
		}
		fmt.Fprint(w, d.HTML())
	})
}
