package webdriver

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/blang/semver"
	"github.com/google/go-cmp/cmp"
)

func pickUnusedPort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

func TestIsDisplay(t *testing.T) {
	tests := []struct {
		desc  string
		in    string
		valid bool
	}{
		{
			desc:  "valid with just display",
			in:    "2",
			valid: true,
		},
		{
			desc:  "valid with display and screen",
			in:    "2.5",
			valid: true,
		},
		{
			desc:  "invalid with non-numeric display",
			in:    "a",
			valid: false,
		},
		{
			desc:  "invalid with non-numeric display and screen",
			in:    "a.5",
			valid: false,
		},
		{
			desc:  "invalid with display and non-numeric screen",
			in:    "2.b",
			valid: false,
		},
		{
			desc:  "invalid with display and blank screen",
			in:    "2.",
			valid: false,
		},
		{
			desc:  "invalid with blank display and screen",
			in:    ".3",
			valid: false,
		},
		{
			desc:  "invalid with blank display and blank screen",
			in:    ".",
			valid: false,
		},
		{
			desc:  "blank string is invalid",
			in:    "",
			valid: false,
		},
		{
			desc:  "malformed input",
			in:    "2.5.7",
			valid: false,
		},
	}

	for _, test := range tests {
		if got, want := isDisplay(test.in), test.valid; got != want {
			t.Errorf("%s: isDisplay = %t, want %t", test.desc, got, want)
		}
	}
}

func TestFrameBuffer(t *testing.T) {
	// Make sure that we are using our unit-test version of `exec.Command`.
	newExecCommand = fakeExecCommand
	defer func() { newExecCommand = exec.Command }()

	t.Run("Default behavior", func(t *testing.T) {
		frameBuffer, err := NewFrameBuffer()
		if err != nil {
			t.Fatalf("Could not create frame buffer: %s", err.Error())
		}
		if frameBuffer.Display != "1" {
			t.Errorf("frameBuffer.Display = %s, want %s", frameBuffer.Display, "1")
		}
		args := frameBuffer.cmd.Args[3:]
		if len(args) != 5 {
			t.Errorf("args length = %d, want = %d", len(args), 5)
		} else {
			if args[0] != "Xvfb" {
				t.Errorf("args[0] = %s, want = %s", args[0], "Xvfb")
			}
			if args[1] != "-displayfd" {
				t.Errorf("args[1] = %s, want = %s", args[1], "-displayfd")
			}
			if args[2] != "3" {
				t.Errorf("args[2] = %s, want = %s", args[2], "3")
			}
			if args[3] != "-nolisten" {
				t.Errorf("args[3] = %s, want = %s", args[3], "-nolisten")
			}
			if args[4] != "tcp" {
				t.Errorf("args[4] = %s, want = %s", args[4], "tcp")
			}
		}
	})
	t.Run("With screen size", func(t *testing.T) {
		options := FrameBufferOptions{
			ScreenSize: "1024x768x24",
		}
		frameBuffer, err := NewFrameBufferWithOptions(options)
		if err != nil {
			t.Fatalf("Could not create frame buffer: %s", err.Error())
		}
		if frameBuffer.Display != "1" {
			t.Errorf("frameBuffer.Display = %s, want %s", frameBuffer.Display, "1")
		}
		args := frameBuffer.cmd.Args[3:]
		if len(args) != 8 {
			t.Errorf("args length = %d, want = %d", len(args), 8)
		} else {
			if args[0] != "Xvfb" {
				t.Errorf("args[0] = %s, want = %s", args[0], "Xvfb")
			}
			if args[1] != "-displayfd" {
				t.Errorf("args[1] = %s, want = %s", args[1], "-displayfd")
			}
			if args[2] != "3" {
				t.Errorf("args[2] = %s, want = %s", args[2], "3")
			}
			if args[3] != "-nolisten" {
				t.Errorf("args[3] = %s, want = %s", args[3], "-nolisten")
			}
			if args[4] != "tcp" {
				t.Errorf("args[4] = %s, want = %s", args[4], "tcp")
			}
			if args[5] != "-screen" {
				t.Errorf("args[5] = %s, want = %s", args[5], "-screen")
			}
			if args[6] != "0" {
				t.Errorf("args[6] = %s, want = %s", args[6], "0")
			}
			if args[7] != options.ScreenSize {
				t.Errorf("args[7] = %s, want = %s", args[7], options.ScreenSize)
			}
		}
	})
}

func TestParseDriverVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    semver.Version
		wantErr bool
	}{
		{
			in:   "114.0.5735.90 (386bc09e8f4f2e025eddae123f36f6263096ae49-refs/branch-heads/5735@{#1052})",
			want: semver.Version{Major: 114, Minor: 0, Patch: 5735},
		},
		{
			in:   "2.46.628388",
			want: semver.Version{Major: 2, Minor: 46, Patch: 628388},
		},
		{
			in:   "v0.33",
			want: semver.Version{Major: 0, Minor: 33, Patch: 0},
		},
		{
			in:      "",
			wantErr: true,
		},
		{
			in:      "latest",
			wantErr: true,
		},
	}

	for _, test := range tests {
		got, err := parseDriverVersion(test.in)
		if test.wantErr {
			if err == nil {
				t.Errorf("parseDriverVersion(%q) returned nil error, want one", test.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDriverVersion(%q) returned error: %v", test.in, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("parseDriverVersion(%q) returned diff (-want/+got):\n%s", test.in, diff)
		}
	}
}

func TestChromeDriverService(t *testing.T) {
	newExecCommand = fakeExecCommand
	defer func() { newExecCommand = exec.Command }()

	t.Run("Reports version", func(t *testing.T) {
		port, err := pickUnusedPort()
		if err != nil {
			t.Fatalf("pickUnusedPort() returned error: %v", err)
		}
		s, err := NewChromeDriverService("chromedriver", port, MinimumVersion("100.0"), StartupTimeout(10*time.Second))
		if err != nil {
			t.Fatalf("NewChromeDriverService() returned error: %v", err)
		}
		if got, want := s.Version().Major, uint64(114); got != want {
			t.Errorf("s.Version().Major = %d, want %d", got, want)
		}
		if got, want := s.Addr(), fmt.Sprintf("http://localhost:%d/wd/hub", port); got != want {
			t.Errorf("s.Addr() = %q, want %q", got, want)
		}
		if err := s.Stop(); err != nil {
			t.Errorf("s.Stop() returned error: %v", err)
		}
	})

	t.Run("Rejects old driver", func(t *testing.T) {
		port, err := pickUnusedPort()
		if err != nil {
			t.Fatalf("pickUnusedPort() returned error: %v", err)
		}
		_, err = NewChromeDriverService("old-chromedriver", port, MinimumVersion("100.0"), StartupTimeout(10*time.Second))
		if err == nil {
			t.Fatal("NewChromeDriverService() returned nil error for an old driver")
		}
		if !strings.Contains(err.Error(), "older than the required") {
			t.Errorf("NewChromeDriverService() error = %q, want it to mention the required version", err)
		}
	})

	t.Run("With frame buffer", func(t *testing.T) {
		port, err := pickUnusedPort()
		if err != nil {
			t.Fatalf("pickUnusedPort() returned error: %v", err)
		}
		s, err := NewChromeDriverService("chromedriver", port,
			StartFrameBufferWithOptions(FrameBufferOptions{ScreenSize: "1280x800"}), StartupTimeout(10*time.Second))
		if err != nil {
			t.Fatalf("NewChromeDriverService() returned error: %v", err)
		}
		fb := s.FrameBuffer()
		if fb == nil {
			t.Fatal("s.FrameBuffer() = nil, want the started frame buffer")
		}
		want := []string{"DISPLAY=:1", "XAUTHORITY=" + fb.AuthPath}
		if diff := cmp.Diff(want, fb.Env()); diff != "" {
			t.Errorf("fb.Env() diff (-want/+got):\n%s", diff)
		}
		if diff := cmp.Diff(want, s.cmd.Env[len(s.cmd.Env)-2:]); diff != "" {
			t.Errorf("driver environment diff (-want/+got):\n%s", diff)
		}
		if err := s.Stop(); err != nil {
			t.Errorf("s.Stop() returned error: %v", err)
		}
		if _, err := os.Stat(fb.AuthPath); !os.IsNotExist(err) {
			t.Errorf("xauthority file %s still exists after Stop", fb.AuthPath)
		}
	})

	t.Run("Invalid screen size", func(t *testing.T) {
		_, err := NewChromeDriverService("chromedriver", 0, StartFrameBufferWithOptions(FrameBufferOptions{ScreenSize: "big"}))
		if err == nil || !strings.Contains(err.Error(), "invalid screen size") {
			t.Fatalf("NewChromeDriverService() error = %v, want an invalid screen size error", err)
		}
	})

	t.Run("Invalid minimum version", func(t *testing.T) {
		if _, err := NewChromeDriverService("chromedriver", 0, MinimumVersion("")); err == nil {
			t.Fatal("NewChromeDriverService() returned nil error for an empty minimum version")
		}
	})
}
