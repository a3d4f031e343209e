// Remote WebDriver client implementation.
// See https://www.w3.org/TR/webdriver for the protocol.

package webdriver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultURLPrefix is the default HTTP endpoint that offers the WebDriver API.
	DefaultURLPrefix = "http://127.0.0.1:4444/wd/hub"
	// JSONType is JSON content type.
	JSONType = "application/json"
	// MaxRedirects is the maximum number of redirects to follow.
	MaxRedirects = 10
)

var httpClient *http.Client

// HTTPClient returns the default HTTP client used by remote sessions.
func HTTPClient() *http.Client {
	return httpClient
}

// RemoteOption configures a remote client created by NewRemote.
type RemoteOption func(*remoteWD)

// WithLogger makes the client log every request and reply at debug level.
func WithLogger(l *zap.Logger) RemoteOption {
	return func(wd *remoteWD) {
		wd.logger = l.Named("webdriver")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(wd *remoteWD) {
		wd.client = c
	}
}

type remoteWD struct {
	id, urlPrefix string
	capabilities  Capabilities

	client *http.Client
	logger *zap.Logger
}

// NewRemote creates new remote client, this will also start a new session.
// capabilities provides the desired capabilities. urlPrefix is the URL to the
// WebDriver server, which must be prefixed with protocol (http, https, ...).
//
// Providing an empty string for urlPrefix causes the DefaultURLPrefix to be
// used.
func NewRemote(capabilities Capabilities, urlPrefix string, opts ...RemoteOption) (WebDriver, error) {
	if urlPrefix == "" {
		urlPrefix = DefaultURLPrefix
	}
	if capabilities == nil {
		capabilities = Capabilities{}
	}

	wd := &remoteWD{
		urlPrefix:    strings.TrimSuffix(urlPrefix, "/"),
		capabilities: capabilities,
		client:       httpClient,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(wd)
	}

	if _, err := wd.NewSession(); err != nil {
		return nil, err
	}
	return wd, nil
}

func newRequest(method string, url string, data []byte) (*http.Request, error) {
	request, err := http.NewRequest(method, url, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	request.Header.Add("Accept", JSONType)
	if data != nil {
		request.Header.Add("Content-Type", JSONType+"; charset=utf-8")
	}

	return request, nil
}

func cleanNils(buf []byte) {
	for i, b := range buf {
		if b == 0 {
			buf[i] = ' '
		}
	}
}

func (wd *remoteWD) requestURL(template string, args ...interface{}) string {
	return wd.urlPrefix + fmt.Sprintf(template, args...)
}

type serverReply struct {
	// SessionID is only set at top level by pre-W3C servers.
	SessionID *string         `json:"sessionId"`
	Value     json.RawMessage `json:"value"`
}

func (wd *remoteWD) execute(method, url string, data []byte) ([]byte, error) {
	wd.logger.Debug("->", zap.String("method", method), zap.String("url", url), zap.ByteString("body", data))
	request, err := newRequest(method, url, data)
	if err != nil {
		return nil, err
	}

	response, err := wd.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	buf, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading reply to %s %s", method, url)
	}
	wd.logger.Debug("<-", zap.String("status", response.Status), zap.ByteString("body", buf))
	cleanNils(buf)

	if response.StatusCode < 400 {
		return buf, nil
	}

	reply := new(serverReply)
	werr := &Error{HTTPCode: response.StatusCode}
	if err := json.Unmarshal(buf, reply); err != nil || len(reply.Value) == 0 {
		werr.Err = UnknownError
		werr.Message = fmt.Sprintf("bad server reply status: %s", response.Status)
		return nil, werr
	}
	if err := json.Unmarshal(reply.Value, werr); err != nil || werr.Err == "" {
		werr.Err = UnknownError
		werr.Message = fmt.Sprintf("bad server reply status: %s", response.Status)
	}
	return nil, werr
}

func (wd *remoteWD) voidCommand(method, urlTemplate string, params interface{}) error {
	var data []byte
	if method == http.MethodPost {
		if params == nil {
			params = struct{}{}
		}
		var err error
		data, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}
	_, err := wd.execute(method, wd.requestURL(urlTemplate, wd.id), data)
	return err
}

// valueCommand issues a GET and decodes the reply's "value" into v.
func (wd *remoteWD) valueCommand(urlTemplate string, v interface{}) error {
	response, err := wd.execute(http.MethodGet, wd.requestURL(urlTemplate, wd.id), nil)
	if err != nil {
		return err
	}
	reply := new(serverReply)
	if err := json.Unmarshal(response, reply); err != nil {
		return err
	}
	if len(reply.Value) == 0 {
		return errors.New("reply did not carry a value")
	}
	return json.Unmarshal(reply.Value, v)
}

func (wd *remoteWD) stringCommand(urlTemplate string) (string, error) {
	var s *string
	if err := wd.valueCommand(urlTemplate, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", errors.New("nil return value")
	}
	return *s, nil
}

func (wd *remoteWD) stringsCommand(urlTemplate string) ([]string, error) {
	var s []string
	if err := wd.valueCommand(urlTemplate, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func (wd *remoteWD) boolCommand(urlTemplate string) (bool, error) {
	var b bool
	if err := wd.valueCommand(urlTemplate, &b); err != nil {
		return false, err
	}
	return b, nil
}

func (wd *remoteWD) Status() (*Status, error) {
	response, err := wd.execute(http.MethodGet, wd.requestURL("/status"), nil)
	if err != nil {
		return nil, err
	}

	status := new(struct{ Value Status })
	if err := json.Unmarshal(response, status); err != nil {
		return nil, err
	}
	return &status.Value, nil
}

func (wd *remoteWD) NewSession() (string, error) {
	data, err := json.Marshal(map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": wd.capabilities,
		},
		"desiredCapabilities": wd.capabilities,
	})
	if err != nil {
		return "", err
	}

	response, err := wd.execute(http.MethodPost, wd.requestURL("/session"), data)
	if err != nil {
		return "", err
	}

	reply := new(serverReply)
	if err := json.Unmarshal(response, reply); err != nil {
		return "", err
	}
	if reply.SessionID != nil && *reply.SessionID != "" {
		wd.id = *reply.SessionID
		return wd.id, nil
	}

	value := new(struct {
		SessionID string `json:"sessionId"`
	})
	if err := json.Unmarshal(reply.Value, value); err != nil {
		return "", err
	}
	if value.SessionID == "" {
		return "", errors.New("new session reply did not carry a session id")
	}
	wd.id = value.SessionID
	return wd.id, nil
}

func (wd *remoteWD) SessionID() string {
	return wd.id
}

func (wd *remoteWD) Quit() error {
	if wd.id == "" {
		return nil
	}
	_, err := wd.execute(http.MethodDelete, wd.requestURL("/session/%s", wd.id), nil)
	if err == nil {
		wd.id = ""
	}
	return err
}

func (wd *remoteWD) Get(url string) error {
	return wd.voidCommand(http.MethodPost, "/session/%s/url", map[string]string{
		"url": url,
	})
}

func (wd *remoteWD) CurrentURL() (string, error) {
	return wd.stringCommand("/session/%s/url")
}

func (wd *remoteWD) Title() (string, error) {
	return wd.stringCommand("/session/%s/title")
}

func (wd *remoteWD) CurrentWindowHandle() (string, error) {
	return wd.stringCommand("/session/%s/window")
}

func (wd *remoteWD) WindowHandles() ([]string, error) {
	return wd.stringsCommand("/session/%s/window/handles")
}

func (wd *remoteWD) SwitchWindow(handle string) error {
	return wd.voidCommand(http.MethodPost, "/session/%s/window", map[string]string{
		"handle": handle,
	})
}

func (wd *remoteWD) SwitchFrame(frame interface{}) error {
	params := map[string]interface{}{}
	switch f := frame.(type) {
	case nil:
		params["id"] = nil
	case int:
		params["id"] = f
	case WebElement:
		params["id"] = map[string]string{ElementKey: f.ID()}
	default:
		return errors.Errorf("invalid type %T for frame", frame)
	}
	return wd.voidCommand(http.MethodPost, "/session/%s/frame", params)
}

// W3CLocator rewrites the strategies W3C drivers no longer accept into
// equivalent CSS selectors.
func W3CLocator(by, value string) (string, string) {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
	switch by {
	case ByID:
		return ByCSSSelector, `[id="` + quoted + `"]`
	case ByName:
		return ByCSSSelector, `[name="` + quoted + `"]`
	case ByClassName:
		return ByCSSSelector, `[class~="` + quoted + `"]`
	}
	return by, value
}

func (wd *remoteWD) find(by, value, suffix, url string) ([]byte, error) {
	by, value = W3CLocator(by, value)
	data, err := json.Marshal(map[string]string{
		"using": by,
		"value": value,
	})
	if err != nil {
		return nil, err
	}

	if url == "" {
		url = "/session/%s/element"
	}
	return wd.execute(http.MethodPost, wd.requestURL(url+suffix, wd.id), data)
}

// element is a wire element reference. Pre-W3C drivers use the "ELEMENT" key.
type element struct {
	Element string `json:"element-6066-11e4-a52e-4f735466cecf"`
	Legacy  string `json:"ELEMENT"`
}

func (e element) id() string {
	if e.Element != "" {
		return e.Element
	}
	return e.Legacy
}

func (wd *remoteWD) decodeElement(data []byte) (WebElement, error) {
	reply := new(struct{ Value element })
	if err := json.Unmarshal(data, reply); err != nil {
		return nil, err
	}
	id := reply.Value.id()
	if id == "" {
		return nil, errors.New("reply did not carry an element reference")
	}
	return &remoteWE{parent: wd, id: id}, nil
}

func (wd *remoteWD) decodeElements(data []byte) ([]WebElement, error) {
	reply := new(struct{ Value []element })
	if err := json.Unmarshal(data, reply); err != nil {
		return nil, err
	}

	elems := make([]WebElement, 0, len(reply.Value))
	for _, elem := range reply.Value {
		elems = append(elems, &remoteWE{parent: wd, id: elem.id()})
	}
	return elems, nil
}

func (wd *remoteWD) FindElement(by, value string) (WebElement, error) {
	response, err := wd.find(by, value, "", "")
	if err != nil {
		return nil, err
	}
	return wd.decodeElement(response)
}

func (wd *remoteWD) FindElements(by, value string) ([]WebElement, error) {
	response, err := wd.find(by, value, "s", "")
	if err != nil {
		return nil, err
	}
	return wd.decodeElements(response)
}

func (wd *remoteWD) GetCookies() ([]Cookie, error) {
	// ChromeDriver returns the expiration date as a float. Handle both formats
	// via a type switch.
	type cookie struct {
		Name   string      `json:"name"`
		Value  string      `json:"value"`
		Path   string      `json:"path"`
		Domain string      `json:"domain"`
		Secure bool        `json:"secure"`
		Expiry interface{} `json:"expiry"`
	}

	var raw []cookie
	if err := wd.valueCommand("/session/%s/cookie", &raw); err != nil {
		return nil, err
	}

	cookies := make([]Cookie, len(raw))
	for i, c := range raw {
		sanitized := Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
			Secure: c.Secure,
		}
		if expiry, ok := c.Expiry.(float64); ok && expiry > 0 {
			sanitized.Expiry = uint(expiry)
		}
		cookies[i] = sanitized
	}
	return cookies, nil
}

func (wd *remoteWD) DeleteAllCookies() error {
	return wd.voidCommand(http.MethodDelete, "/session/%s/cookie", nil)
}

func (wd *remoteWD) Screenshot() ([]byte, error) {
	data, err := wd.stringCommand("/session/%s/screenshot")
	if err != nil {
		return nil, err
	}

	// The remote end returns a base64 encoded PNG.
	decoder := base64.NewDecoder(base64.StdEncoding, strings.NewReader(data))
	return io.ReadAll(decoder)
}

func (wd *remoteWD) PerformActions(sources []InputSource) error {
	return wd.voidCommand(http.MethodPost, "/session/%s/actions", map[string]interface{}{
		"actions": sources,
	})
}

func (wd *remoteWD) ReleaseActions() error {
	return wd.voidCommand(http.MethodDelete, "/session/%s/actions", nil)
}

func (wd *remoteWD) WaitWithTimeoutAndInterval(condition Condition, timeout, interval time.Duration) error {
	return WaitFor(wd, condition, timeout, interval)
}

func (wd *remoteWD) WaitWithTimeout(condition Condition, timeout time.Duration) error {
	return wd.WaitWithTimeoutAndInterval(condition, timeout, DefaultWaitInterval)
}

func (wd *remoteWD) Wait(condition Condition) error {
	return wd.WaitWithTimeoutAndInterval(condition, DefaultWaitTimeout, DefaultWaitInterval)
}

type remoteWE struct {
	parent *remoteWD
	id     string
}

func (elem *remoteWE) ID() string {
	return elem.id
}

// template returns a session-scoped URL template for an element command.
func (elem *remoteWE) template(suffix string) string {
	return fmt.Sprintf("/session/%%s/element/%s/%s", elem.id, suffix)
}

func (elem *remoteWE) Click() error {
	return elem.parent.voidCommand(http.MethodPost, elem.template("click"), nil)
}

func (elem *remoteWE) SendKeys(keys string) error {
	return elem.parent.voidCommand(http.MethodPost, elem.template("value"), processKeyString(keys))
}

func processKeyString(keys string) interface{} {
	chars := make([]string, 0, len(keys))
	for _, c := range keys {
		chars = append(chars, string(c))
	}
	return map[string]interface{}{
		"text":  keys,
		"value": chars,
	}
}

func (elem *remoteWE) Clear() error {
	return elem.parent.voidCommand(http.MethodPost, elem.template("clear"), nil)
}

func (elem *remoteWE) TagName() (string, error) {
	return elem.parent.stringCommand(elem.template("name"))
}

func (elem *remoteWE) Text() (string, error) {
	return elem.parent.stringCommand(elem.template("text"))
}

func (elem *remoteWE) IsEnabled() (bool, error) {
	return elem.parent.boolCommand(elem.template("enabled"))
}

func (elem *remoteWE) IsDisplayed() (bool, error) {
	return elem.parent.boolCommand(elem.template("displayed"))
}

func (elem *remoteWE) GetAttribute(name string) (string, error) {
	var s *string
	if err := elem.parent.valueCommand(elem.template("attribute/"+name), &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

func (elem *remoteWE) Rect() (*Rect, error) {
	r := new(Rect)
	if err := elem.parent.valueCommand(elem.template("rect"), r); err != nil {
		return nil, err
	}
	return r, nil
}

func (elem *remoteWE) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"ELEMENT":  elem.id,
		ElementKey: elem.id,
	})
}

func init() {
	// http.Client doesn't copy request headers, and the remote end requires that.
	httpClient = &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return errors.Errorf("too many redirects (%d)", len(via))
			}

			req.Header.Add("Accept", JSONType)
			return nil
		},
	}
}
