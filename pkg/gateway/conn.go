package gateway

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

var errNoDeadline = errors.New("gateway: deadlines are not supported on channel connections")

// ChannelConn adapts a handed-off SSH channel to net.Conn so the inner
// protocol can treat it like the socket it replaces. The endpoints are those
// of the SSH transport the channel rode in on.
type ChannelConn struct {
	ch    ssh.Channel
	laddr net.Addr
	raddr net.Addr

	closeOnce sync.Once
	closeErr  error
}

var _ net.Conn = (*ChannelConn)(nil)

func newChannelConn(ch ssh.Channel, laddr, raddr net.Addr) *ChannelConn {
	return &ChannelConn{ch: ch, laddr: laddr, raddr: raddr}
}

func (c *ChannelConn) Read(p []byte) (int, error)  { return c.ch.Read(p) }
func (c *ChannelConn) Write(p []byte) (int, error) { return c.ch.Write(p) }

// Close closes the underlying channel. Safe to call more than once.
func (c *ChannelConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ch.Close()
	})
	return c.closeErr
}

func (c *ChannelConn) LocalAddr() net.Addr  { return c.laddr }
func (c *ChannelConn) RemoteAddr() net.Addr { return c.raddr }

// SSH channels carry no deadline mechanism, so these always fail.
func (c *ChannelConn) SetDeadline(time.Time) error      { return errNoDeadline }
func (c *ChannelConn) SetReadDeadline(time.Time) error  { return errNoDeadline }
func (c *ChannelConn) SetWriteDeadline(time.Time) error { return errNoDeadline }

// Stderr exposes the channel's error stream.
func (c *ChannelConn) Stderr() io.ReadWriter {
	return c.ch.Stderr()
}
