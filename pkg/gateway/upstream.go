package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/internal/telemetry"
	"github.com/marmos91/xgate/pkg/bufpool"
	"github.com/marmos91/xgate/pkg/metrics"
)

// spliceBufSize is the scratch buffer size for each relay direction.
const spliceBufSize = 64 << 10

// UpstreamHandler is the default SessionHandler: it dials the display socket
// and splices the handed-off channel to it until either side closes.
type UpstreamHandler struct {
	// Upstream is the display socket address, either "unix:/path/to/sock"
	// or "tcp:host:port". A bare absolute path is treated as a unix socket.
	Upstream string
	// DialTimeout bounds the upstream dial. Zero means 10 seconds.
	DialTimeout time.Duration
	Metrics     metrics.GatewayMetrics
}

// Handle moves bytes between conn and the upstream socket. It owns both
// connections and closes them before returning.
func (h *UpstreamHandler) Handle(ctx context.Context, conn *ChannelConn) error {
	rec := h.Metrics
	if rec == nil {
		rec = metrics.NopGatewayMetrics{}
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanHandoff,
		trace.WithAttributes(telemetry.Target(h.Upstream)))
	defer span.End()

	network, address, err := splitUpstream(h.Upstream)
	if err != nil {
		telemetry.RecordError(ctx, err)
		_ = conn.Close()
		return err
	}

	timeout := h.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	upstream, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		err = fmt.Errorf("dial upstream %s: %w", h.Upstream, err)
		telemetry.RecordError(ctx, err)
		_ = conn.Close()
		return err
	}
	logger.Debug("Upstream connected",
		"upstream", h.Upstream,
		"remote", conn.RemoteAddr().String())

	// Either direction ending tears both connections down so the opposite
	// copy loop unblocks.
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = conn.Close()
			_ = upstream.Close()
		})
	}
	defer closeBoth()

	var wg sync.WaitGroup
	var toUpstream, fromUpstream int64
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer closeBoth()
		buf := bufpool.Get(spliceBufSize)
		defer bufpool.Put(buf)
		n, err := io.CopyBuffer(upstream, conn, buf)
		toUpstream = n
		errs[0] = err
	}()
	go func() {
		defer wg.Done()
		defer closeBoth()
		buf := bufpool.Get(spliceBufSize)
		defer bufpool.Put(buf)
		n, err := io.CopyBuffer(conn, upstream, buf)
		fromUpstream = n
		errs[1] = err
	}()
	wg.Wait()

	rec.RecordBridgeBytes("to-upstream", uint64(toUpstream))
	rec.RecordBridgeBytes("from-upstream", uint64(fromUpstream))
	logger.Debug("Upstream session ended",
		"upstream", h.Upstream,
		"bytes_to_upstream", toUpstream,
		"bytes_from_upstream", fromUpstream)

	for _, err := range errs {
		if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
			continue
		}
		err = fmt.Errorf("upstream relay: %w", err)
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}

func splitUpstream(raw string) (network, address string, err error) {
	switch {
	case raw == "":
		return "", "", errors.New("upstream address is empty")
	case strings.HasPrefix(raw, "unix:"):
		return "unix", strings.TrimPrefix(raw, "unix:"), nil
	case strings.HasPrefix(raw, "tcp:"):
		return "tcp", strings.TrimPrefix(raw, "tcp:"), nil
	case strings.HasPrefix(raw, "/"):
		return "unix", raw, nil
	default:
		return "tcp", raw, nil
	}
}
