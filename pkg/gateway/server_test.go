package gateway

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, conn *ChannelConn) error {
	defer conn.Close()
	_, err := io.Copy(conn, conn)
	return err
}

type blockingHandler struct {
	started chan struct{}
	done    chan error
}

func (h *blockingHandler) Handle(_ context.Context, conn *ChannelConn) error {
	close(h.started)
	defer conn.Close()
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			h.done <- err
			return nil
		}
	}
}

func startServer(t *testing.T, cfg Config, handler SessionHandler, rec *recordingMetrics) (*Server, <-chan error) {
	t.Helper()
	if rec == nil {
		rec = &recordingMetrics{}
	}
	srv := New(cfg, testBootstrap(t, rec), handler, rec)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(context.Background())
	}()
	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start listening")
	}
	return srv, serveErr
}

func dialServer(t *testing.T, srv *Server) *ssh.Client {
	t.Helper()
	cfg := &ssh.ClientConfig{
		User:            "demo",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	client, err := ssh.Dial("tcp", srv.Addr().String(), cfg)
	if err != nil {
		t.Fatalf("dial gateway: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func startProxySession(t *testing.T, client *ssh.Client) (io.WriteCloser, io.Reader) {
	t.Helper()
	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("stdin pipe: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	if err := sess.Start("xpra _proxy"); err != nil {
		t.Fatalf("start proxy command: %v", err)
	}
	return stdin, stdout
}

func waitForSessions(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.Sessions()) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session count never reached %d, have %d", want, len(srv.Sessions()))
}

func TestServerDirectHandoff(t *testing.T) {
	rec := &recordingMetrics{}
	srv, serveErr := startServer(t, Config{Listen: "127.0.0.1:0", ShutdownTimeout: 2 * time.Second}, echoHandler{}, rec)

	client := dialServer(t, srv)
	stdin, stdout := startProxySession(t, client)

	if _, err := stdin.Write([]byte("hello")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := io.ReadFull(stdout, buf); err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(buf) != "hello" {
		t.Errorf("echoed %q, want %q", buf, "hello")
	}

	sessions := srv.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].Outcome != "direct-handoff" {
		t.Errorf("session outcome = %q, want %q", sessions[0].Outcome, "direct-handoff")
	}
	if sessions[0].User != "demo" {
		t.Errorf("session user = %q, want %q", sessions[0].User, "demo")
	}
	if got := srv.ActiveConnections(); got != 1 {
		t.Errorf("active connections = %d, want 1", got)
	}

	_ = client.Close()
	waitForSessions(t, srv, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("serve returned %v", err)
	}
}

func TestServerStopInterruptsBlockedSessions(t *testing.T) {
	handler := &blockingHandler{
		started: make(chan struct{}),
		done:    make(chan error, 1),
	}
	srv, serveErr := startServer(t, Config{Listen: "127.0.0.1:0", ShutdownTimeout: 3 * time.Second}, handler, nil)

	client := dialServer(t, srv)
	startProxySession(t, client)

	select {
	case <-handler.started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never received the session")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop should drain after interrupting reads, got %v", err)
	}

	select {
	case err := <-handler.done:
		if err == nil {
			t.Error("blocked read should have been interrupted with an error")
		}
	case <-time.After(time.Second):
		t.Fatal("handler still blocked after stop")
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("serve returned %v", err)
	}
}

func TestServerSubprocessSessionsDetach(t *testing.T) {
	rec := &recordingMetrics{}
	srv, serveErr := startServer(t, Config{Listen: "127.0.0.1:0", ShutdownTimeout: 2 * time.Second}, echoHandler{}, rec)

	client := dialServer(t, srv)
	sess, err := client.NewSession()
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		t.Fatalf("stdin pipe: %v", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	if err := sess.Start("xpra _proxy_start"); err != nil {
		t.Fatalf("start proxy-start command: %v", err)
	}

	echo := func(msg string) {
		t.Helper()
		if _, err := stdin.Write([]byte(msg)); err != nil {
			t.Fatalf("client write: %v", err)
		}
		buf := make([]byte, len(msg))
		if _, err := io.ReadFull(stdout, buf); err != nil {
			t.Fatalf("client read: %v", err)
		}
		if string(buf) != msg {
			t.Fatalf("echoed %q, want %q", buf, msg)
		}
	}
	echo("before stop")

	sessions := srv.Sessions()
	if len(sessions) != 1 || sessions[0].Outcome != "subprocess" {
		t.Fatalf("sessions = %+v, want one subprocess session", sessions)
	}
	if sessions[0].Mode != "seamless" {
		t.Errorf("session mode = %q, want %q", sessions[0].Mode, "seamless")
	}

	// The subprocess session has already detached from the accept loop, so
	// shutdown must not wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("serve returned %v", err)
	}

	// The bridge keeps flowing after the listener is gone.
	echo("after stop")

	_ = sess.Close()
	waitForSessions(t, srv, 0)
}

func TestServerMaxConnections(t *testing.T) {
	srv, serveErr := startServer(t, Config{
		Listen:          "127.0.0.1:0",
		MaxConnections:  1,
		ShutdownTimeout: 2 * time.Second,
	}, echoHandler{}, nil)

	first := dialServer(t, srv)
	stdin, stdout := startProxySession(t, first)
	if _, err := stdin.Write([]byte("x")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	if _, err := io.ReadFull(stdout, make([]byte, 1)); err != nil {
		t.Fatalf("client read: %v", err)
	}

	// With the only slot taken, a second handshake cannot start.
	raw, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("tcp dial: %v", err)
	}
	_ = raw.SetDeadline(time.Now().Add(500 * time.Millisecond))
	cfg := &ssh.ClientConfig{
		User:            "demo",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	if _, _, _, err := ssh.NewClientConn(raw, srv.Addr().String(), cfg); err == nil {
		t.Fatal("second handshake should have stalled at the connection cap")
	}
	_ = raw.Close()

	// Releasing the first connection frees the slot.
	_ = first.Close()
	second := dialServer(t, srv)
	stdin2, stdout2 := startProxySession(t, second)
	if _, err := stdin2.Write([]byte("y")); err != nil {
		t.Fatalf("second client write: %v", err)
	}
	if _, err := io.ReadFull(stdout2, make([]byte, 1)); err != nil {
		t.Fatalf("second client read: %v", err)
	}

	_ = second.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := <-serveErr; err != nil {
		t.Fatalf("serve returned %v", err)
	}
}
