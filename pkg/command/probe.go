package command

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ProbeResult carries the streams and exit status to relay for a lookup
// probe.
type ProbeResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Prober answers "type/which/command" probes for the xpra binary. On POSIX
// hosts it runs the lookup for real; elsewhere it synthesizes an answer,
// accepting only "xpra" as the probed name.
type Prober struct {
	posix bool
}

func NewProber() *Prober {
	return &Prober{posix: runtime.GOOS != "windows"}
}

// Run executes the probe described by tokens (the full command line, with
// the probed name last) and returns what should be relayed to the client.
func (p *Prober) Run(ctx context.Context, tokens []string) ProbeResult {
	target := tokens[len(tokens)-1] // ie: $XDG_RUNTIME_DIR/xpra/run-xpra or "xpra"
	if !p.posix {
		if strings.Trim(strings.Trim(target, `"`), "'") == "xpra" {
			return ProbeResult{Stdout: []byte("xpra is xpra")}
		}
		return ProbeResult{
			Stderr:   []byte(tokens[0] + ": " + target + ": not found"),
			ExitCode: 1,
		}
	}

	// No shell, so the path argument has to be expanded here.
	argv := append([]string(nil), tokens...)
	argv[len(argv)-1] = expandPath(target)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return ProbeResult{
				Stderr:   []byte("failed to execute command: " + err.Error()),
				ExitCode: 1,
			}
		}
		return ProbeResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: exitErr.ExitCode()}
	}
	return ProbeResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
}

// expandPath expands environment references and a leading tilde, like the
// shell would have.
func expandPath(s string) string {
	s = os.ExpandEnv(s)
	if s == "~" || strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	return s
}
