package webdriver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var newExecCommand = exec.Command

// ServiceOption configures a Service instance.
type ServiceOption func(*Service) error

// Display specifies the value to which set the DISPLAY environment variable,
// as well as the path to the Xauthority file containing credentials needed to
// write to that X server.
func Display(d, xauthPath string) ServiceOption {
	return func(s *Service) error {
		if s.display != "" {
			return errors.Errorf("service display already set: %v", s.display)
		}
		if s.xauthPath != "" {
			return errors.Errorf("service xauth path already set: %v", s.xauthPath)
		}
		if !isDisplay(d) {
			return errors.Errorf("supplied display %q must be of the format 'x' or 'x.y' where x and y are integers", d)
		}
		s.display = d
		s.xauthPath = xauthPath
		return nil
	}
}

// isDisplay validates that the given disp is in the format "x" or "x.y", where
// x and y are both integers.
func isDisplay(disp string) bool {
	ds := strings.Split(disp, ".")
	if len(ds) > 2 {
		return false
	}

	for _, d := range ds {
		if _, err := strconv.Atoi(d); err != nil {
			return false
		}
	}
	return true
}

// StartFrameBuffer causes an X virtual frame buffer to start before the
// WebDriver service. The frame buffer process will be terminated when the
// service itself is stopped.
func StartFrameBuffer() ServiceOption {
	return StartFrameBufferWithOptions(FrameBufferOptions{})
}

// FrameBufferOptions describes the options that can be used to create a frame buffer.
type FrameBufferOptions struct {
	// ScreenSize is the option for the frame buffer screen size.
	// This is of the form "{width}x{height}[x{depth}]".  For example: "1024x768x24"
	ScreenSize string
}

// StartFrameBufferWithOptions causes an X virtual frame buffer to start before
// the WebDriver service. The frame buffer process will be terminated when the
// service itself is stopped.
func StartFrameBufferWithOptions(options FrameBufferOptions) ServiceOption {
	return func(s *Service) error {
		if s.display != "" {
			return errors.Errorf("service display already set: %v", s.display)
		}
		if s.xauthPath != "" {
			return errors.Errorf("service xauth path already set: %v", s.xauthPath)
		}
		if s.xvfb != nil {
			return errors.New("service Xvfb instance already running")
		}
		fb, err := NewFrameBufferWithOptions(options)
		if err != nil {
			return errors.Wrap(err, "error starting frame buffer")
		}
		s.xvfb = fb
		return Display(fb.Display, fb.AuthPath)(s)
	}
}

// Output specifies that the WebDriver service should log to the provided
// writer.
func Output(w io.Writer) ServiceOption {
	return func(s *Service) error {
		s.output = w
		return nil
	}
}

// Logger sets the logger that reports the service lifecycle.
func Logger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		s.logger = l.Named("service")
		return nil
	}
}

// MinimumVersion makes the service refuse to start unless the driver reports
// a build version of at least v through its status endpoint.
func MinimumVersion(v string) ServiceOption {
	return func(s *Service) error {
		parsed, err := parseDriverVersion(v)
		if err != nil {
			return errors.Wrapf(err, "invalid minimum driver version %q", v)
		}
		s.minVersion = &parsed
		return nil
	}
}

// StartupTimeout bounds how long the service waits for the driver to answer
// its status endpoint.
func StartupTimeout(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d <= 0 {
			return errors.Errorf("startup timeout must be positive, got %v", d)
		}
		s.startupTimeout = d
		return nil
	}
}

// Service controls a locally-running WebDriver subprocess.
type Service struct {
	port            int
	addr            string
	cmd             *exec.Cmd
	shutdownURLPath string

	display, xauthPath string
	xvfb               *FrameBuffer

	minVersion     *semver.Version
	version        semver.Version
	startupTimeout time.Duration

	output io.Writer
	logger *zap.Logger
}

// FrameBuffer returns the FrameBuffer if one was started by the service and nil otherwise.
func (s *Service) FrameBuffer() *FrameBuffer {
	return s.xvfb
}

// Addr returns the URL prefix at which the driver serves the WebDriver API.
func (s *Service) Addr() string {
	return s.addr
}

// Version returns the driver build version, or the zero version if the driver
// did not report one.
func (s *Service) Version() semver.Version {
	return s.version
}

// NewChromeDriverService starts a ChromeDriver instance in the background.
func NewChromeDriverService(path string, port int, opts ...ServiceOption) (*Service, error) {
	cmd := newExecCommand(path, "--port="+strconv.Itoa(port), "--url-base=wd/hub", "--verbose")
	s, err := newService(cmd, "/wd/hub", port, opts...)
	if err != nil {
		return nil, err
	}
	s.shutdownURLPath = "/shutdown"
	if err := s.start(port); err != nil {
		return nil, err
	}
	return s, nil
}

// NewGeckoDriverService starts a GeckoDriver instance in the background.
func NewGeckoDriverService(path string, port int, opts ...ServiceOption) (*Service, error) {
	cmd := newExecCommand(path, "--port", strconv.Itoa(port))
	s, err := newService(cmd, "", port, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.start(port); err != nil {
		return nil, err
	}
	return s, nil
}

func newService(cmd *exec.Cmd, urlPrefix string, port int, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		port:           port,
		addr:           fmt.Sprintf("http://localhost:%d%s", port, urlPrefix),
		startupTimeout: 30 * time.Second,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	cmd.Stderr = s.output
	cmd.Stdout = s.output
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	if s.display != "" {
		cmd.Env = append(cmd.Env, "DISPLAY=:"+s.display)
	}
	if s.xauthPath != "" {
		cmd.Env = append(cmd.Env, "XAUTHORITY="+s.xauthPath)
	}
	s.cmd = cmd
	return s, nil
}

func (s *Service) start(port int) error {
	if err := s.cmd.Start(); err != nil {
		return err
	}

	deadline := time.Now().Add(s.startupTimeout)
	for time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)
		status, ok := s.status()
		if !ok {
			continue
		}
		if err := s.checkVersion(status); err != nil {
			s.Stop()
			return err
		}
		s.logger.Info("driver service started",
			zap.String("addr", s.addr),
			zap.String("version", s.version.String()))
		return nil
	}
	s.cmd.Process.Kill()
	s.cmd.Wait()
	return errors.Errorf("server did not respond on port %d", port)
}

// status fetches the driver status. ok is false while the driver is not yet
// serving.
func (s *Service) status() (*Status, bool) {
	resp, err := http.Get(s.addr + "/status")
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	reply := new(struct{ Value Status })
	if err := json.NewDecoder(bufio.NewReader(resp.Body)).Decode(reply); err != nil {
		// Drivers that answer with something other than JSON are still up.
		return &Status{}, true
	}
	return &reply.Value, true
}

func (s *Service) checkVersion(status *Status) error {
	if status.Build.Version != "" {
		v, err := parseDriverVersion(status.Build.Version)
		if err != nil {
			s.logger.Warn("unparseable driver version", zap.String("version", status.Build.Version), zap.Error(err))
		} else {
			s.version = v
		}
	}
	if s.minVersion == nil {
		return nil
	}
	if s.version.EQ(semver.Version{}) {
		return errors.Errorf("driver did not report a version; %s required", s.minVersion)
	}
	if s.version.LT(*s.minVersion) {
		return errors.Errorf("driver version %s is older than the required %s", s.version, s.minVersion)
	}
	return nil
}

// parseDriverVersion reads versions such as "114.0.5735.90 (386bc09e8f4f...)"
// by keeping the first three numeric components.
func parseDriverVersion(v string) (semver.Version, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return semver.Version{}, errors.New("empty version")
	}
	parts := strings.Split(strings.TrimPrefix(fields[0], "v"), ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return semver.ParseTolerant(strings.Join(parts, "."))
}

// Stop shuts down the WebDriver service, and the X virtual frame buffer
// if one was started.
func (s *Service) Stop() error {
	if s.shutdownURLPath == "" {
		if err := s.cmd.Process.Kill(); err != nil {
			return err
		}
	} else {
		resp, err := http.Get(s.addr + s.shutdownURLPath)
		if err != nil {
			return err
		}
		resp.Body.Close()
	}
	if err := s.cmd.Wait(); err != nil && err.Error() != "signal: killed" {
		return err
	}
	if s.xvfb != nil {
		return s.xvfb.Stop()
	}
	return nil
}

// FrameBuffer controls an X virtual frame buffer running as a background
// process.
type FrameBuffer struct {
	// Display is the X11 display number that the Xvfb process is hosting
	// (without the preceding colon).
	Display string
	// AuthPath is the path to the X11 authorization file that permits X clients
	// to use the X server. This is typically provided to the client via the
	// XAUTHORITY environment variable.
	AuthPath string

	cmd *exec.Cmd
}

// NewFrameBuffer starts an X virtual frame buffer running in the background.
func NewFrameBuffer() (*FrameBuffer, error) {
	return NewFrameBufferWithOptions(FrameBufferOptions{})
}

var screenSizeExpression = regexp.MustCompile(`^\d+x\d+(?:x\d+)?$`)

// NewFrameBufferWithOptions starts an X virtual frame buffer running in the background.
// FrameBufferOptions may be populated to change the behavior of the frame buffer.
// The Xvfb process is killed again if it does not come up.
func NewFrameBufferWithOptions(options FrameBufferOptions) (*FrameBuffer, error) {
	arguments := []string{"-displayfd", "3", "-nolisten", "tcp"}
	if options.ScreenSize != "" {
		if !screenSizeExpression.MatchString(options.ScreenSize) {
			return nil, errors.Errorf("invalid screen size: expected 'WxH[xD]', got %q", options.ScreenSize)
		}
		arguments = append(arguments, "-screen", "0", options.ScreenSize)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "creating display pipe")
	}
	defer r.Close()

	auth, err := os.CreateTemp("", "webdriver-xvfb")
	if err != nil {
		w.Close()
		return nil, errors.Wrap(err, "creating xauthority file")
	}
	fb := &FrameBuffer{AuthPath: auth.Name()}
	auth.Close()

	// Xvfb prints its display number on file descriptor 3.
	fb.cmd = newExecCommand("Xvfb", arguments...)
	fb.cmd.ExtraFiles = []*os.File{w}
	fb.cmd.Env = append(fb.cmd.Env, "XAUTHORITY="+fb.AuthPath)
	err = fb.cmd.Start()
	w.Close()
	if err != nil {
		os.Remove(fb.AuthPath)
		return nil, errors.Wrap(err, "starting Xvfb")
	}

	type line struct {
		s   string
		err error
	}
	ch := make(chan line, 1)
	go func() {
		s, err := bufio.NewReader(r).ReadString('\n')
		ch <- line{s, err}
	}()

	select {
	case l := <-ch:
		fb.Display = strings.TrimSpace(l.s)
		if l.err != nil {
			err = errors.Wrap(l.err, "reading Xvfb display")
		} else if _, perr := strconv.Atoi(fb.Display); perr != nil {
			err = errors.New("Xvfb did not print the display number")
		}
	case <-time.After(3 * time.Second):
		err = errors.New("timeout waiting for Xvfb")
	}
	if err == nil {
		xauth := newExecCommand("xauth", "generate", ":"+fb.Display, ".", "trusted")
		xauth.Stderr = os.Stderr
		xauth.Stdout = os.Stdout
		xauth.Env = append(xauth.Env, "XAUTHORITY="+fb.AuthPath)
		err = errors.Wrap(xauth.Run(), "authorizing display")
	}
	if err != nil {
		fb.Stop()
		return nil, err
	}
	return fb, nil
}

// Env returns the DISPLAY and XAUTHORITY variables that point a browser at
// the frame buffer.
func (f FrameBuffer) Env() []string {
	return []string{"DISPLAY=:" + f.Display, "XAUTHORITY=" + f.AuthPath}
}

// Stop kills the background frame buffer process and removes the X
// authorization file.
func (f FrameBuffer) Stop() error {
	defer os.Remove(f.AuthPath)
	if err := f.cmd.Process.Kill(); err != nil {
		return errors.Wrap(err, "killing Xvfb")
	}
	if err := f.cmd.Wait(); err != nil && err.Error() != "signal: killed" {
		return err
	}
	return nil
}
