package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProberSynthesized(t *testing.T) {
	p := &Prober{posix: false}

	tests := []struct {
		name       string
		tokens     []string
		wantStdout string
		wantStderr string
		wantExit   int
	}{
		{"bare xpra", []string{"type", "xpra"}, "xpra is xpra", "", 0},
		{"double quoted xpra", []string{"type", `"xpra"`}, "xpra is xpra", "", 0},
		{"single quoted xpra", []string{"which", "'xpra'"}, "xpra is xpra", "", 0},
		{"command dash v", []string{"command", "-v", "xpra"}, "xpra is xpra", "", 0},
		{"unknown target", []string{"type", "run-xpra"}, "", "type: run-xpra: not found", 1},
		{"unknown target other tool", []string{"which", "/opt/xpra"}, "", "which: /opt/xpra: not found", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Run(context.Background(), tt.tokens)
			if string(res.Stdout) != tt.wantStdout {
				t.Errorf("Stdout = %q, want %q", res.Stdout, tt.wantStdout)
			}
			if string(res.Stderr) != tt.wantStderr {
				t.Errorf("Stderr = %q, want %q", res.Stderr, tt.wantStderr)
			}
			if res.ExitCode != tt.wantExit {
				t.Errorf("ExitCode = %d, want %d", res.ExitCode, tt.wantExit)
			}
		})
	}
}

func TestProberExec(t *testing.T) {
	p := &Prober{posix: true}

	t.Run("relays streams and exit status", func(t *testing.T) {
		res := p.Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2; exit 3"})
		if string(res.Stdout) != "out\n" {
			t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
		}
		if string(res.Stderr) != "err\n" {
			t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
		}
		if res.ExitCode != 3 {
			t.Errorf("ExitCode = %d, want 3", res.ExitCode)
		}
	})

	t.Run("expands the probed path before running", func(t *testing.T) {
		t.Setenv("XGATE_PROBE_TARGET", "echo expanded")
		res := p.Run(context.Background(), []string{"sh", "-c", "$XGATE_PROBE_TARGET"})
		if string(res.Stdout) != "expanded\n" {
			t.Errorf("Stdout = %q, want %q", res.Stdout, "expanded\n")
		}
		if res.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", res.ExitCode)
		}
	})

	t.Run("missing tool reports the failure", func(t *testing.T) {
		res := p.Run(context.Background(), []string{"xgate-no-such-tool", "xpra"})
		if res.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", res.ExitCode)
		}
		if !strings.HasPrefix(string(res.Stderr), "failed to execute command: ") {
			t.Errorf("Stderr = %q, want execution failure message", res.Stderr)
		}
	})
}

func TestExpandPath(t *testing.T) {
	t.Setenv("XGATE_TEST_RUNTIME", "/run/user/1000")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"xpra", "xpra"},
		{"$XGATE_TEST_RUNTIME/xpra/run-xpra", "/run/user/1000/xpra/run-xpra"},
		{"~/.xpra/run-xpra", filepath.Join(home, ".xpra/run-xpra")},
		{"~", home},
		{"/usr/bin/xpra", "/usr/bin/xpra"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
