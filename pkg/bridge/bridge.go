package bridge

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/bufpool"
	"github.com/marmos91/xgate/pkg/metrics"
)

const (
	// DefaultChunkSize is how many bytes each forwarding loop reads at once.
	DefaultChunkSize = 4096

	// DefaultCommand launches xpra from PATH.
	DefaultCommand = "xpra"
)

// Options configures subprocess bridging.
type Options struct {
	// Command is the executable serving xpra subcommands.
	Command string

	// Args are inserted between Command and the subcommand.
	Args []string

	ChunkSize  int
	SendWindow time.Duration
	Metrics    metrics.GatewayMetrics
}

// Bridge couples a spawned xpra subprocess to an SSH channel. Three loops
// run for the life of the process: stdout to the channel, stderr to the
// channel's error stream, and channel bytes to stdin. Any of them, or
// external cancellation, may tear the whole bridge down; teardown happens
// exactly once.
type Bridge struct {
	channel ssh.Channel
	cmd     *exec.Cmd
	mode    string
	chunk   int
	window  time.Duration
	rec     metrics.GatewayMetrics

	closeOnce sync.Once
	done      chan struct{}

	// outputs gates the reaper: cmd.Wait closes the pipes, so it must not
	// run before the stdout and stderr pumps have drained them.
	outputs sync.WaitGroup

	exited   atomic.Bool
	exitCode atomic.Int32
}

// Start spawns the subprocess for subcommand and wires up the forwarding
// loops. On spawn failure no process is left behind and the channel is
// untouched.
func Start(ch ssh.Channel, subcommand string, args []string, opts Options) (*Bridge, error) {
	command := opts.Command
	if command == "" {
		command = DefaultCommand
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	window := opts.SendWindow
	if window <= 0 {
		window = DefaultSendWindow
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.NopGatewayMetrics{}
	}

	argv := append(append([]string(nil), opts.Args...), subcommand)
	argv = append(argv, args...)
	cmd := exec.Command(command, argv...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %q subprocess: %w", subcommand, err)
	}

	b := &Bridge{
		channel: ch,
		cmd:     cmd,
		mode:    ServerMode(subcommand),
		chunk:   chunk,
		window:  window,
		rec:     rec,
		done:    make(chan struct{}),
	}
	rec.RecordBridgeSpawn(b.mode)
	logger.Info("Starting proxy session",
		"mode", b.mode,
		"subcommand", subcommand,
		"pid", cmd.Process.Pid)

	b.outputs.Add(2)
	go b.pump(stdout, ch, "stdout")
	go b.pump(stderr, ch.Stderr(), "stderr")
	go b.feed(stdin)
	go b.reap()
	return b, nil
}

// pump forwards one subprocess output stream to the client. EOF means the
// process closed its end; the reaper handles teardown then. Anything else
// kills the bridge here.
func (b *Bridge) pump(r io.Reader, w io.Writer, stream string) {
	defer b.outputs.Done()
	buf := bufpool.Get(b.chunk)
	defer bufpool.Put(buf)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if serr := Send(w, buf[:n], b.window); serr != nil {
				logger.Debug("Bridge send failed", "stream", stream, "error", serr)
				b.Close()
				return
			}
			b.rec.RecordBridgeBytes(stream, uint64(n))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("Bridge read failed", "stream", stream, "error", err)
				b.Close()
			}
			return
		}
	}
}

// feed forwards client bytes to the subprocess stdin. A zero-length read or
// error means the remote closed, which ends the session.
func (b *Bridge) feed(stdin io.WriteCloser) {
	buf := bufpool.Get(b.chunk)
	defer bufpool.Put(buf)
	for {
		n, err := b.channel.Read(buf)
		if n > 0 {
			if _, werr := stdin.Write(buf[:n]); werr != nil {
				logger.Debug("Bridge stdin write failed", "error", werr)
				b.Close()
				return
			}
			b.rec.RecordBridgeBytes("stdin", uint64(n))
		}
		if err != nil {
			b.Close()
			return
		}
	}
}

// reap waits for the subprocess, records its exit code and finishes the
// teardown.
func (b *Bridge) reap() {
	b.outputs.Wait()
	err := b.cmd.Wait()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	b.exitCode.Store(int32(code))
	b.exited.Store(true)
	b.rec.RecordBridgeExit(code)
	logger.Info("Proxy session ended", "mode", b.mode, "exit_code", code)
	b.Close()
	close(b.done)
}

// Close tears the bridge down. Safe to call from any worker or from outside,
// any number of times: there is exactly one termination attempt for the
// subprocess and exactly one close of the channel.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		if b.cmd.Process != nil {
			_ = b.cmd.Process.Kill()
		}
		_ = b.channel.Close()
	})
}

// Done is closed once the subprocess has been reaped and the channel closed.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// ExitCode reports the subprocess exit code once it has exited.
func (b *Bridge) ExitCode() (int, bool) {
	if !b.exited.Load() {
		return 0, false
	}
	return int(b.exitCode.Load()), true
}

// Mode reports the session flavor label for this bridge.
func (b *Bridge) Mode() string {
	return b.mode
}

// ServerMode labels the session flavor a subcommand starts.
func ServerMode(subcommand string) string {
	switch subcommand {
	case "_proxy_start":
		return "seamless"
	case "_proxy_start_desktop":
		return "desktop"
	case "_proxy_shadow_start":
		return "shadow"
	}
	return strings.ReplaceAll(subcommand, "_proxy_", "")
}
