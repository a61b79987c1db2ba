// Package bridge moves bytes between an accepted SSH channel and the xpra
// session behind it, either by stashing the channel for a direct handoff or
// by spawning an xpra subprocess and forwarding its streams.
package bridge

import (
	"errors"
	"io"
	"time"
)

// DefaultSendWindow bounds how long Send keeps retrying one payload.
const DefaultSendWindow = 5 * time.Second

// ErrSendTimeout reports a payload that could not be drained within the
// send window.
var ErrSendTimeout = errors.New("bridge: failed to send all data")

// Send writes data to w, retrying partial writes until everything is out or
// the window elapses. A zero-byte write ends the attempt early; write errors
// are returned as-is. Undrained data is reported as ErrSendTimeout.
func Send(w io.Writer, data []byte, window time.Duration) error {
	if len(data) == 0 {
		return nil
	}
	start := time.Now()
	for len(data) > 0 && time.Since(start) < window {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		data = data[n:]
	}
	if len(data) > 0 {
		return ErrSendTimeout
	}
	return nil
}
