package transport

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LinkProfile describes the emulated link between two parties.
type LinkProfile struct {
	// BandwidthMbps limits outgoing throughput in megabits per second.
	// Zero disables the limit.
	BandwidthMbps float64
	// Latency is added to every message before it is handed to the inner
	// messenger. Zero disables the delay.
	Latency time.Duration
}

// Enabled reports whether the profile changes anything.
func (p LinkProfile) Enabled() bool {
	return p.BandwidthMbps > 0 || p.Latency > 0
}

// Shaped applies a LinkProfile to the outgoing side of a Messenger.
type Shaped struct {
	Messenger
	profile LinkProfile
	limiter *rate.Limiter
	burst   int
}

// NewShaped wraps inner with the given profile. The token bucket holds
// roughly 10ms of traffic so short bursts are smoothed rather than rejected.
func NewShaped(inner Messenger, profile LinkProfile) *Shaped {
	s := &Shaped{Messenger: inner, profile: profile}
	if profile.BandwidthMbps > 0 {
		bytesPerSec := profile.BandwidthMbps * 1e6 / 8
		s.burst = int(bytesPerSec / 100)
		if s.burst < 64*1024 {
			s.burst = 64 * 1024
		}
		s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), s.burst)
	}
	return s
}

// MessageSend waits for bandwidth tokens and link latency, then sends.
func (s *Shaped) MessageSend(ctx context.Context, receiver int, buffer []byte) error {
	if s.limiter != nil {
		for remaining := len(buffer); remaining > 0; {
			n := remaining
			if n > s.burst {
				n = s.burst
			}
			if err := s.limiter.WaitN(ctx, n); err != nil {
				return err
			}
			remaining -= n
		}
	}
	if s.profile.Latency > 0 {
		t := time.NewTimer(s.profile.Latency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
	return s.Messenger.MessageSend(ctx, receiver, buffer)
}

// MessagesReceive keeps concurrent receives on the wrapper.
func (s *Shaped) MessagesReceive(ctx context.Context, senders []int) ([][]byte, error) {
	return ReceiveAll(ctx, s, senders)
}

// Stats holds traffic counters of one party.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	MessagesSent  uint64
	MessagesRecv  uint64
}

// Counting records traffic passing through a Messenger.
type Counting struct {
	Messenger
	bytesSent, bytesRecv atomic.Uint64
	msgsSent, msgsRecv   atomic.Uint64
}

// NewCounting wraps inner.
func NewCounting(inner Messenger) *Counting {
	return &Counting{Messenger: inner}
}

// MessageSend counts and forwards.
func (c *Counting) MessageSend(ctx context.Context, receiver int, buffer []byte) error {
	if err := c.Messenger.MessageSend(ctx, receiver, buffer); err != nil {
		return err
	}
	c.bytesSent.Add(uint64(len(buffer)))
	c.msgsSent.Add(1)
	return nil
}

// MessageReceive forwards and counts.
func (c *Counting) MessageReceive(ctx context.Context, sender int) ([]byte, error) {
	buf, err := c.Messenger.MessageReceive(ctx, sender)
	if err != nil {
		return nil, err
	}
	c.bytesRecv.Add(uint64(len(buf)))
	c.msgsRecv.Add(1)
	return buf, nil
}

// MessagesReceive keeps concurrent receives on the wrapper.
func (c *Counting) MessagesReceive(ctx context.Context, senders []int) ([][]byte, error) {
	return ReceiveAll(ctx, c, senders)
}

// Stats returns a snapshot of the counters.
func (c *Counting) Stats() Stats {
	return Stats{
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesRecv.Load(),
		MessagesSent:  c.msgsSent.Load(),
		MessagesRecv:  c.msgsRecv.Load(),
	}
}
