package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/internal/telemetry"
	"github.com/marmos91/xgate/pkg/auth"
	"github.com/marmos91/xgate/pkg/bridge"
	"github.com/marmos91/xgate/pkg/command"
	"github.com/marmos91/xgate/pkg/hostkeys"
	"github.com/marmos91/xgate/pkg/metrics"
)

// DefaultWait bounds both the wait for the client's first session channel
// and the wait for the command that decides the session's fate.
const DefaultWait = 20 * time.Second

// Outcome classifies what one SSH connection attempt produced.
type Outcome int

const (
	// OutcomeRejected means no session materialized: handshake failure,
	// timeout, or a refused command.
	OutcomeRejected Outcome = iota
	// OutcomeDirectHandoff means the client channel is ready to be wired
	// to an upstream session.
	OutcomeDirectHandoff
	// OutcomeSubprocessBridge means a spawned subprocess owns the channel;
	// there is no further connection object to hand anywhere.
	OutcomeSubprocessBridge
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDirectHandoff:
		return "direct-handoff"
	case OutcomeSubprocessBridge:
		return "subprocess"
	default:
		return "rejected"
	}
}

// Result is what Bootstrap.Handle produced for one connection.
type Result struct {
	Outcome   Outcome
	SessionID string
	User      string

	// Conn is set only for direct handoffs.
	Conn *ChannelConn
	// Bridge is set only for subprocess sessions.
	Bridge *bridge.Bridge
}

// Bootstrap runs the SSH server side of one TCP connection: handshake,
// channel acceptance and the bounded wait for a recognized command.
type Bootstrap struct {
	// HostKeys must hold at least one signer.
	HostKeys []ssh.Signer
	// Auth builds the ssh.ServerConfig used for the handshake.
	Auth *auth.Engine
	// ServerVersion overrides the identification banner when non-empty.
	ServerVersion string
	// Wait bounds the channel and command waits. Zero means DefaultWait.
	Wait time.Duration

	Interpreter command.Interpreter
	Prober      *command.Prober
	Bridge      bridge.Options
	Metrics     metrics.GatewayMetrics
}

// Handle drives netConn through handshake and command interpretation. The
// returned Result always carries an Outcome; the error explains rejections
// caused by transport failures or timeouts. Clean refusals (a recognized but
// unacceptable command) return OutcomeRejected with a nil error.
func (bs *Bootstrap) Handle(ctx context.Context, netConn net.Conn) (Result, error) {
	start := time.Now()
	rec := bs.Metrics
	if rec == nil {
		rec = metrics.NopGatewayMetrics{}
	}
	wait := bs.Wait
	if wait <= 0 {
		wait = DefaultWait
	}

	rejected := func(err error) (Result, error) {
		rec.RecordSession(OutcomeRejected.String(), time.Since(start))
		return Result{Outcome: OutcomeRejected}, err
	}

	if len(bs.HostKeys) == 0 {
		return rejected(fmt.Errorf("ssh server: %w", hostkeys.ErrNoHostKeys))
	}

	cfg := bs.Auth.ServerConfig()
	for _, key := range bs.HostKeys {
		cfg.AddHostKey(key)
	}
	if bs.ServerVersion != "" {
		cfg.ServerVersion = bs.ServerVersion
	}

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, cfg)
	if err != nil {
		rec.RecordHandshakeFailure()
		return rejected(fmt.Errorf("ssh handshake: %w", err))
	}

	method := ""
	if sshConn.Permissions != nil {
		method = sshConn.Permissions.Extensions[auth.MethodExtension]
	}
	sess := newSession(uuid.NewString())
	remote := sshConn.RemoteAddr().String()
	ctx, span := telemetry.StartSessionSpan(ctx, sess.id, remote,
		telemetry.Username(sshConn.User()),
		telemetry.AuthMethod(method))
	defer span.End()

	clientIP := remote
	if host, _, splitErr := net.SplitHostPort(remote); splitErr == nil {
		clientIP = host
	}
	lc := logger.NewLogContext(sess.id, clientIP).WithUser(sshConn.User(), method)
	if telemetry.IsEnabled() {
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	}
	ctx = logger.WithContext(ctx, lc)
	logger.InfoCtx(ctx, "SSH connection established",
		"remote", remote,
		"client_version", string(sshConn.ClientVersion()))

	go ssh.DiscardRequests(reqs)

	prober := bs.Prober
	if prober == nil {
		prober = command.NewProber()
	}
	rtr := &router{
		sess:        sess,
		interpreter: &bs.Interpreter,
		prober:      prober,
		bridgeOpts:  bs.Bridge,
		window:      bs.Bridge.SendWindow,
		rec:         rec,
	}

	firstChannel := make(chan struct{})
	var acceptOnce sync.Once
	go func() {
		for newCh := range chans {
			if newCh.ChannelType() != "session" {
				rec.RecordChannelRejected(newCh.ChannelType())
				telemetry.AddEvent(ctx, "ssh.channel_rejected",
					telemetry.ChannelType(newCh.ChannelType()))
				logger.DebugCtx(ctx, "Rejecting channel", "type", newCh.ChannelType())
				_ = newCh.Reject(ssh.Prohibited, "only session channels are accepted")
				continue
			}
			ch, chReqs, err := newCh.Accept()
			if err != nil {
				logger.DebugCtx(ctx, "Channel accept failed", "error", err)
				continue
			}
			acceptOnce.Do(func() { close(firstChannel) })
			go rtr.serve(ctx, ch, chReqs)
		}
	}()

	select {
	case <-firstChannel:
	case <-time.After(wait):
		err := errors.New("timed out waiting for a session channel")
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "SSH channel setup failed", "remote", remote)
		_ = sshConn.Close()
		return rejected(err)
	case <-ctx.Done():
		telemetry.RecordError(ctx, ctx.Err())
		_ = sshConn.Close()
		return rejected(ctx.Err())
	}

	timedOut := false
	select {
	case <-sess.done:
	case <-time.After(wait):
		timedOut = true
	case <-ctx.Done():
		telemetry.RecordError(ctx, ctx.Err())
		_ = sshConn.Close()
		return rejected(ctx.Err())
	}

	ch, proc := sess.slot.Get()
	if timedOut || ch == nil {
		if timedOut {
			logger.WarnCtx(ctx, "Timeout waiting for xpra proxy command", "remote", remote)
		}
		_ = sshConn.Close()
		var err error
		if timedOut {
			err = errors.New("timed out waiting for a proxy command")
			telemetry.RecordError(ctx, err)
		}
		span.SetAttributes(telemetry.Outcome(OutcomeRejected.String()))
		res, _ := rejected(err)
		res.SessionID = sess.id
		res.User = sshConn.User()
		return res, err
	}

	result := Result{
		SessionID: sess.id,
		User:      sshConn.User(),
	}
	if proc != nil {
		result.Outcome = OutcomeSubprocessBridge
		result.Bridge = proc
	} else {
		result.Outcome = OutcomeDirectHandoff
		result.Conn = newChannelConn(ch, sshConn.LocalAddr(), sshConn.RemoteAddr())
	}
	rec.RecordSession(result.Outcome.String(), time.Since(start))
	span.SetAttributes(telemetry.Outcome(result.Outcome.String()))
	logger.InfoCtx(ctx, "Session established", "outcome", result.Outcome.String())
	return result, nil
}
