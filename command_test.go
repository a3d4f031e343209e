package webdriver

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// fakeExecCommand is a replacement for `exec.Command` that we can control
// using the TestHelperProcess function.
//
// For more information, see:
// * https://npf.io/2015/06/testing-exec-command/
// * https://golang.org/src/os/exec/exec_test.go
func fakeExecCommand(command string, args ...string) *exec.Cmd {
	// Use `go test` to run the `TestHelperProcess` test with our arguments.
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

// fakeDriverVersions maps the fake driver binaries to the build version they
// report.
var fakeDriverVersions = map[string]string{
	"chromedriver":     "114.0.5735.90 (386bc09e8f4f2e025eddae123f36f6263096ae49-refs/branch-heads/5735@{#1052})",
	"old-chromedriver": "2.46.628388 (4a34a70827ac54148e092aafb70504c4ea7ae926)",
}

func TestHelperProcess(t *testing.T) {
	// If this function (which masquerades as a test) is run on its own, then
	// just return quietly.
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "No command\n")
		os.Exit(2)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "echo":
		fmt.Printf("%s\n", strings.Join(args, " "))
		os.Exit(0)
	case "Xvfb":
		// Print out the X11 screen of "1".
		screenNumber := "1"
		file := os.NewFile(uintptr(3), "pipe")
		_, err := file.Write([]byte(screenNumber + "\n"))
		if err != nil {
			panic(err)
		}
		time.Sleep(time.Second * 3)
		file.Close()
		os.Exit(0)
	case "xauth":
		os.Exit(0)
	case "chromedriver", "old-chromedriver":
		serveFakeDriver(fakeDriverVersions[cmd], args)
	}

	fmt.Fprintf(os.Stderr, "%s: command not found\n", cmd)
	os.Exit(127)
}

// serveFakeDriver answers the status and shutdown endpoints the way
// ChromeDriver does, on the port given by the --port flag.
func serveFakeDriver(version string, args []string) {
	var port string
	for _, a := range args {
		if strings.HasPrefix(a, "--port=") {
			port = strings.TrimPrefix(a, "--port=")
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/wd/hub/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", JSONType)
		fmt.Fprintf(w, `{"value":{"ready":true,"message":"ChromeDriver ready for new sessions.","build":{"version":%q}}}`, version)
	})
	mux.HandleFunc("/wd/hub/shutdown", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Shutting down")
		go func() {
			time.Sleep(100 * time.Millisecond)
			os.Exit(0)
		}()
	})
	if err := http.ListenAndServe("127.0.0.1:"+port, mux); err != nil {
		fmt.Fprintf(os.Stderr, "fake driver: %v\n", err)
		os.Exit(1)
	}
}

func TestFakeExecCommand(t *testing.T) {
	cmd := fakeExecCommand("echo", "hello", "world")
	outputBytes, err := cmd.Output()
	if err != nil {
		t.Fatalf("Could not get output: %s", err.Error())
	}
	outputString := string(outputBytes)
	if outputString != "hello world\n" {
		t.Fatalf("outputString = %s, want = %s", outputString, "hello world\n")
	}
}
