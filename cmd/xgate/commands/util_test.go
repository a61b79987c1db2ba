package commands

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

func TestGetDefaultStateDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG paths are not used on Windows")
	}

	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	got := GetDefaultStateDir()
	want := filepath.Join("/tmp/xdg-state", "xgate")
	if got != want {
		t.Errorf("GetDefaultStateDir() = %q, want %q", got, want)
	}
}

func TestGetDefaultStateDir_HomeFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG paths are not used on Windows")
	}

	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/tester")

	got := GetDefaultStateDir()
	want := filepath.Join("/home/tester", ".local", "state", "xgate")
	if got != want {
		t.Errorf("GetDefaultStateDir() = %q, want %q", got, want)
	}
}

func TestGetDefaultFiles(t *testing.T) {
	if !strings.HasSuffix(GetDefaultPidFile(), "xgate.pid") {
		t.Errorf("GetDefaultPidFile() = %q, want xgate.pid suffix", GetDefaultPidFile())
	}
	if !strings.HasSuffix(GetDefaultLogFile(), "xgate.log") {
		t.Errorf("GetDefaultLogFile() = %q, want xgate.log suffix", GetDefaultLogFile())
	}
}

func TestIsProcessRunning(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing pid file", func(t *testing.T) {
		if _, running := isProcessRunning(filepath.Join(dir, "missing.pid")); running {
			t.Error("isProcessRunning(missing) = true, want false")
		}
	})

	t.Run("garbage pid file", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, running := isProcessRunning(path); running {
			t.Error("isProcessRunning(garbage) = true, want false")
		}
	})

	t.Run("own pid", func(t *testing.T) {
		path := filepath.Join(dir, "own.pid")
		if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
			t.Fatal(err)
		}
		pid, running := isProcessRunning(path)
		if !running {
			t.Fatal("isProcessRunning(own pid) = false, want true")
		}
		if pid != os.Getpid() {
			t.Errorf("pid = %d, want %d", pid, os.Getpid())
		}
	})
}
