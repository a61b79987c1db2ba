package gateway

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/internal/telemetry"
	"github.com/marmos91/xgate/pkg/bridge"
	"github.com/marmos91/xgate/pkg/command"
	"github.com/marmos91/xgate/pkg/metrics"
)

// session is the per-connection rendezvous between the channel router and the
// bootstrap. The router parks the winning channel in the slot and fires done
// exactly once; the bootstrap waits on done and reads the slot to classify
// the outcome.
type session struct {
	id   string
	slot bridge.Slot
	done chan struct{}
	once sync.Once
}

func newSession(id string) *session {
	return &session{id: id, done: make(chan struct{})}
}

// complete fires the completion signal. Later calls are no-ops.
func (s *session) complete() {
	s.once.Do(func() { close(s.done) })
}

// router services the request stream of one accepted session channel. It
// honors at most one exec request; shell and pty requests are always refused.
type router struct {
	sess        *session
	interpreter *command.Interpreter
	prober      *command.Prober
	bridgeOpts  bridge.Options
	window      time.Duration
	rec         metrics.GatewayMetrics
}

func (r *router) serve(ctx context.Context, ch ssh.Channel, reqs <-chan *ssh.Request) {
	handled := false
	for req := range reqs {
		switch req.Type {
		case "exec":
			if handled {
				logger.DebugCtx(ctx, "Ignoring extra exec request")
				_ = req.Reply(false, nil)
				continue
			}
			handled = true
			r.exec(ctx, ch, req)
		case "shell", "pty-req":
			telemetry.AddEvent(ctx, "ssh.request_refused",
				telemetry.RequestType(req.Type))
			logger.DebugCtx(ctx, "Refusing request", "type", req.Type)
			_ = req.Reply(false, nil)
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (r *router) exec(ctx context.Context, ch ssh.Channel, req *ssh.Request) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanExec)
	defer span.End()

	var payload struct{ Command string }
	if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Malformed exec request", "error", err)
		r.rec.RecordExecRequest("unrecognized")
		r.fail(ch, req)
		return
	}

	verdict := r.interpreter.Interpret(payload.Command)
	switch verdict.Kind {
	case command.KindProbe:
		r.rec.RecordExecRequest("probe")
		logger.DebugCtx(ctx, "Answering probe", "command", payload.Command)
		_ = req.Reply(true, nil)
		r.probe(ctx, ch, verdict.Tokens)

	case command.KindDirectProxy:
		r.rec.RecordExecRequest(verdict.Subcommand)
		span.SetAttributes(telemetry.Subcommand(verdict.Subcommand))
		logger.InfoCtx(ctx, "Accepting proxy handoff")
		_ = req.Reply(true, nil)
		r.sess.slot.Install(ch, nil)
		r.sess.complete()

	case command.KindProxyStart:
		r.rec.RecordExecRequest(verdict.Subcommand)
		span.SetAttributes(telemetry.Subcommand(verdict.Subcommand))
		proc, err := bridge.Start(ch, verdict.Subcommand, verdict.Args, r.bridgeOpts)
		if err != nil {
			telemetry.RecordError(ctx, err)
			logger.WarnCtx(ctx, "Failed to start proxy subprocess",
				"subcommand", verdict.Subcommand,
				"error", err)
			r.fail(ch, req)
			return
		}
		r.watchBridge(ctx, proc, verdict.Subcommand)
		_ = req.Reply(true, nil)
		r.sess.slot.Install(ch, proc)
		r.sess.complete()

	default:
		r.rec.RecordExecRequest("unrecognized")
		logger.WarnCtx(ctx, "Refusing ssh command",
			"command", payload.Command,
			"reason", verdict.Reason)
		r.fail(ch, req)
	}
}

// watchBridge holds a span open for the subprocess lifetime and stamps the
// exit code once it ends.
func (r *router) watchBridge(ctx context.Context, proc *bridge.Bridge, subcommand string) {
	_, span := telemetry.StartBridgeSpan(ctx, subcommand, proc.Mode())
	go func() {
		<-proc.Done()
		if code, ok := proc.ExitCode(); ok {
			span.SetAttributes(telemetry.ExitCode(code))
		}
		span.End()
	}()
}

// probe runs the tool lookup and relays its output, exit status included,
// then closes the channel. The completion signal is left untouched so the
// client can follow up with the real command on a fresh channel.
func (r *router) probe(ctx context.Context, ch ssh.Channel, tokens []string) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanProbe)
	defer span.End()

	res := r.prober.Run(ctx, tokens)
	if err := bridge.Send(ch, res.Stdout, r.window); err != nil {
		logger.DebugCtx(ctx, "Failed to relay probe stdout", "error", err)
	}
	if err := bridge.Send(ch.Stderr(), res.Stderr, r.window); err != nil {
		logger.DebugCtx(ctx, "Failed to relay probe stderr", "error", err)
	}
	code := res.ExitCode
	if code < 0 {
		code = 255
	}
	status := struct{ Status uint32 }{uint32(code)}
	if _, err := ch.SendRequest("exit-status", false, ssh.Marshal(&status)); err != nil {
		logger.DebugCtx(ctx, "Failed to send probe exit status", "error", err)
	}
	_ = ch.Close()
}

// fail refuses the exec request, closes the channel and releases anyone
// waiting on the completion signal with the slot still empty.
func (r *router) fail(ch ssh.Channel, req *ssh.Request) {
	if req.WantReply {
		_ = req.Reply(false, nil)
	}
	_ = ch.Close()
	r.sess.complete()
}
