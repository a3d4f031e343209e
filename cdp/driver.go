// Package cdp drives Chrome over the DevTools protocol and exposes it through
// the same webdriver.WebDriver interface as the remote W3C client, so pages
// and suites run unchanged without a chromedriver binary.
package cdp

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wanmail/webdriver"
)

// DefaultCommandTimeout bounds every protocol round trip.
const DefaultCommandTimeout = 30 * time.Second

// Options configures the browser launched by New.
type Options struct {
	// ExecPath is the browser binary. Empty means chromedp's lookup.
	ExecPath string
	Headless bool
	// Args are extra command line switches, with or without the leading
	// dashes, either "flag" or "flag=value".
	Args []string
	// Env adds KEY=VALUE variables to the browser environment, such as the
	// DISPLAY of a frame buffer.
	Env []string
	// CommandTimeout bounds each command. Zero means DefaultCommandTimeout.
	CommandTimeout time.Duration
	Logger         *zap.Logger
}

// allocatorOptions translates Options into chromedp allocator options.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.Headless {
		out = append(out, chromedp.Headless)
	} else {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if len(opts.Env) > 0 {
		out = append(out, chromedp.Env(opts.Env...))
	}
	for _, arg := range opts.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		if key, value, ok := strings.Cut(arg, "="); ok {
			out = append(out, chromedp.Flag(key, value))
			continue
		}
		out = append(out, chromedp.Flag(arg, true))
	}
	return out
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Driver is a webdriver.WebDriver backed by a Chrome instance it owns.
type Driver struct {
	id      string
	timeout time.Duration
	logger  *zap.Logger

	allocCancel context.CancelFunc
	root        tab

	mu      sync.Mutex
	tabs    map[string]tab
	handles []string
	current string
	// frame is the iframe element commands are scoped to, zero for the
	// top-level document.
	frame cdpproto.BackendNodeID
	mouse pointerState

	// Browser-level calls, replaced in tests.
	targets  func(ctx context.Context) ([]*target.Info, error)
	attach   func(handle string) tab
	activate func(handle string) error
}

var _ webdriver.WebDriver = (*Driver)(nil)

// New launches a browser and opens its first tab.
func New(ctx context.Context, opts Options) (*Driver, error) {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// An empty run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, errors.Wrap(err, "failed to start browser")
	}
	handle := string(chromedp.FromContext(tabCtx).Target.TargetID)

	wd := &Driver{
		id:          uuid.NewString(),
		timeout:     opts.CommandTimeout,
		logger:      logger.Named("cdp"),
		allocCancel: allocCancel,
		root:        tab{ctx: tabCtx, cancel: tabCancel},
		tabs:        map[string]tab{handle: {ctx: tabCtx, cancel: tabCancel}},
		handles:     []string{handle},
		current:     handle,
		targets:     chromedp.Targets,
	}
	wd.attach = wd.attachTab
	wd.activate = wd.activateTab
	wd.logger.Debug("browser started", zap.String("session", wd.id), zap.String("window", handle))
	return wd, nil
}

func (wd *Driver) tab() tab {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	return wd.tabs[wd.current]
}

// run executes actions in the current tab within the command timeout.
func (wd *Driver) run(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(wd.tab().ctx, wd.timeout)
	defer cancel()
	return wrapError(chromedp.Run(ctx, actions...))
}

// wrapError turns protocol failures into W3C errors so callers can test
// them with webdriver.IsCode whichever backend they run on.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var we *webdriver.Error
	if errors.As(err, &we) {
		return err
	}
	code := webdriver.UnknownError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = webdriver.Timeout
	case strings.Contains(err.Error(), "node with given id"),
		strings.Contains(err.Error(), "Cannot find context with specified id"):
		code = webdriver.StaleElementReference
	}
	return &webdriver.Error{Err: code, Message: err.Error()}
}

func scriptError(code webdriver.ErrorCode, exc *runtime.ExceptionDetails) error {
	msg := exc.Text
	if exc.Exception != nil && exc.Exception.Description != "" {
		msg = exc.Exception.Description
	}
	return &webdriver.Error{Err: code, Message: msg}
}

// callOn runs fn with this bound to obj. When res is not nil the result is
// returned by value and decoded into it; otherwise the result object is
// returned for further calls.
func callOn(ctx context.Context, obj runtime.RemoteObjectID, fn string, res interface{}) (*runtime.RemoteObject, error) {
	r, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj).
		WithReturnByValue(res != nil).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, scriptError(webdriver.JavascriptError, exc)
	}
	if res != nil && r != nil && len(r.Value) > 0 {
		if err := json.Unmarshal([]byte(r.Value), res); err != nil {
			return nil, errors.Wrap(err, "failed to decode script result")
		}
	}
	return r, nil
}

// rootObject resolves the node that scopes element lookups: the current
// frame element, or the top-level document.
func (wd *Driver) rootObject(ctx context.Context) (*runtime.RemoteObject, error) {
	wd.mu.Lock()
	frame := wd.frame
	wd.mu.Unlock()

	if frame != 0 {
		obj, err := dom.ResolveNode().WithBackendNodeID(frame).Do(ctx)
		if err != nil {
			return nil, &webdriver.Error{Err: webdriver.NoSuchFrame, Message: err.Error()}
		}
		return obj, nil
	}
	obj, exc, err := runtime.Evaluate("document").Do(ctx)
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, scriptError(webdriver.UnknownError, exc)
	}
	return obj, nil
}

// elements expands a JavaScript array object into element handles.
func (wd *Driver) elements(ctx context.Context, array runtime.RemoteObjectID) ([]webdriver.WebElement, error) {
	var n int
	if _, err := callOn(ctx, array, lengthScript, &n); err != nil {
		return nil, err
	}
	elems := make([]webdriver.WebElement, 0, n)
	for i := 0; i < n; i++ {
		r, err := callOn(ctx, array, indexScript(i), nil)
		if err != nil {
			return nil, err
		}
		node, err := dom.DescribeNode().WithObjectID(r.ObjectID).Do(ctx)
		if err != nil {
			return nil, err
		}
		elems = append(elems, &element{wd: wd, backend: node.BackendNodeID})
	}
	return elems, nil
}

func (wd *Driver) SessionID() string {
	return wd.id
}

func (wd *Driver) Status() (*webdriver.Status, error) {
	var product string
	err := wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = browser.GetVersion().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	st := &webdriver.Status{Ready: true, Message: product}
	st.Build.Version = product
	return st, nil
}

// Quit closes the browser. The driver is unusable afterwards.
func (wd *Driver) Quit() error {
	wd.mu.Lock()
	tabs := lo.Values(wd.tabs)
	wd.tabs = map[string]tab{}
	wd.mu.Unlock()

	for _, t := range tabs {
		if t.ctx != wd.root.ctx {
			t.cancel()
		}
	}
	err := chromedp.Cancel(wd.root.ctx)
	wd.allocCancel()
	wd.logger.Debug("browser closed", zap.String("session", wd.id))
	return errors.Wrap(err, "failed to close browser")
}

func (wd *Driver) Get(url string) error {
	wd.mu.Lock()
	wd.frame = 0
	wd.mu.Unlock()

	wd.logger.Debug("navigate", zap.String("url", url))
	if err := wd.run(chromedp.Navigate(url)); err != nil {
		var we *webdriver.Error
		if errors.As(err, &we) && we.Err == webdriver.UnknownError && strings.Contains(we.Message, "Cannot navigate to invalid URL") {
			we.Err = webdriver.InvalidArgument
		}
		return err
	}
	return nil
}

func (wd *Driver) CurrentURL() (string, error) {
	var u string
	err := wd.run(chromedp.Location(&u))
	return u, err
}

func (wd *Driver) Title() (string, error) {
	var title string
	err := wd.run(chromedp.Title(&title))
	return title, err
}

func (wd *Driver) CurrentWindowHandle() (string, error) {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	if _, ok := wd.tabs[wd.current]; !ok {
		return "", &webdriver.Error{Err: webdriver.NoSuchWindow, Message: "current window is closed"}
	}
	return wd.current, nil
}

// WindowHandles lists open tabs, oldest first.
func (wd *Driver) WindowHandles() ([]string, error) {
	ctx, cancel := context.WithTimeout(wd.root.ctx, wd.timeout)
	defer cancel()
	infos, err := wd.targets(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	var open []string
	for _, info := range infos {
		if info.Type == "page" {
			open = append(open, string(info.TargetID))
		}
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()
	wd.handles = orderHandles(wd.handles, open)
	return append([]string(nil), wd.handles...), nil
}

// orderHandles keeps the handles already known in their original order,
// drops closed ones and appends new ones.
func orderHandles(known, open []string) []string {
	out := lo.Filter(known, func(h string, _ int) bool {
		return lo.Contains(open, h)
	})
	for _, h := range open {
		if !lo.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}

func (wd *Driver) SwitchWindow(handle string) error {
	handles, err := wd.WindowHandles()
	if err != nil {
		return err
	}
	if !lo.Contains(handles, handle) {
		return &webdriver.Error{Err: webdriver.NoSuchWindow, Message: "no window with handle " + handle}
	}

	wd.mu.Lock()
	if _, ok := wd.tabs[handle]; !ok {
		wd.tabs[handle] = wd.attach(handle)
	}
	wd.current = handle
	wd.frame = 0
	wd.mouse = pointerState{}
	wd.mu.Unlock()

	// Activate now so a bad handle fails here rather than on the next command.
	return wd.activate(handle)
}

func (wd *Driver) attachTab(handle string) tab {
	ctx, cancel := chromedp.NewContext(wd.root.ctx, chromedp.WithTargetID(target.ID(handle)))
	return tab{ctx: ctx, cancel: cancel}
}

func (wd *Driver) activateTab(handle string) error {
	return wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
		return target.ActivateTarget(target.ID(handle)).Do(cdpproto.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	}))
}

func (wd *Driver) SwitchFrame(frame interface{}) error {
	var backend cdpproto.BackendNodeID
	switch f := frame.(type) {
	case nil:
	case int:
		err := wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
			root, err := wd.rootObject(ctx)
			if err != nil {
				return err
			}
			list, err := callOn(ctx, root.ObjectID, frameScript, nil)
			if err != nil {
				return err
			}
			frames, err := wd.elements(ctx, list.ObjectID)
			if err != nil {
				return err
			}
			backend, err = frameAt(frames, f)
			return err
		}))
		if err != nil {
			return err
		}
	case *element:
		if f.wd != wd {
			return &webdriver.Error{Err: webdriver.InvalidArgument, Message: "element belongs to another session"}
		}
		var ok bool
		if err := f.call(isFrameScript, &ok); err != nil {
			return err
		}
		if !ok {
			return &webdriver.Error{Err: webdriver.NoSuchFrame, Message: "element is not a frame"}
		}
		backend = f.backend
	default:
		return errors.Errorf("invalid type %T for frame", frame)
	}

	wd.mu.Lock()
	wd.frame = backend
	wd.mu.Unlock()
	return nil
}

// frameAt returns the frame element at index i of the document's frames.
func frameAt(frames []webdriver.WebElement, i int) (cdpproto.BackendNodeID, error) {
	if i < 0 || i >= len(frames) {
		return 0, &webdriver.Error{Err: webdriver.NoSuchFrame, Message: "no frame at index " + strconv.Itoa(i)}
	}
	return frames[i].(*element).backend, nil
}

func (wd *Driver) FindElements(by, value string) ([]webdriver.WebElement, error) {
	by, value = webdriver.W3CLocator(by, value)
	var elems []webdriver.WebElement
	err := wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
		root, err := wd.rootObject(ctx)
		if err != nil {
			return err
		}
		r, exc, err := runtime.CallFunctionOn(findScript(by, value)).WithObjectID(root.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return scriptError(webdriver.InvalidSelector, exc)
		}
		elems, err = wd.elements(ctx, r.ObjectID)
		return err
	}))
	return elems, err
}

func (wd *Driver) FindElement(by, value string) (webdriver.WebElement, error) {
	elems, err := wd.FindElements(by, value)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, &webdriver.Error{
			Err:     webdriver.NoSuchElement,
			Message: "no element matches " + by + " " + strconv.Quote(value),
		}
	}
	return elems[0], nil
}

func (wd *Driver) GetCookies() ([]webdriver.Cookie, error) {
	var cookies []*network.Cookie
	err := wd.run(chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return lo.Map(cookies, func(c *network.Cookie, _ int) webdriver.Cookie {
		wc := webdriver.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Domain: c.Domain,
			Secure: c.Secure,
		}
		if c.Expires > 0 {
			wc.Expiry = uint(c.Expires)
		}
		return wc
	}), nil
}

func (wd *Driver) DeleteAllCookies() error {
	return wd.run(network.ClearBrowserCookies())
}

func (wd *Driver) Screenshot() ([]byte, error) {
	var buf []byte
	err := wd.run(chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (wd *Driver) WaitWithTimeoutAndInterval(condition webdriver.Condition, timeout, interval time.Duration) error {
	return webdriver.WaitFor(wd, condition, timeout, interval)
}

func (wd *Driver) WaitWithTimeout(condition webdriver.Condition, timeout time.Duration) error {
	return wd.WaitWithTimeoutAndInterval(condition, timeout, webdriver.DefaultWaitInterval)
}

func (wd *Driver) Wait(condition webdriver.Condition) error {
	return wd.WaitWithTimeoutAndInterval(condition, webdriver.DefaultWaitTimeout, webdriver.DefaultWaitInterval)
}
