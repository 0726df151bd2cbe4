// Package transport defines how emulated MPC parties exchange messages.
//
// Every party owns one Messenger. Messages between a given sender and
// receiver are delivered in order; the secret-sharing runtime relies on this
// because all parties execute the same program in lockstep and never tag
// messages.
//
// Implementations live in the mocknet (in-memory) and tcpnet (loopback TCP)
// subpackages. Shaped and Counting wrap any Messenger to add link latency,
// bandwidth limits and traffic accounting.
package transport

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Messenger handles message passing between MPC parties.
type Messenger interface {
	// MessageSend sends a message buffer to the specified receiver party.
	MessageSend(ctx context.Context, receiver int, buffer []byte) error

	// MessageReceive receives the next message from the specified sender.
	MessageReceive(ctx context.Context, sender int) ([]byte, error)

	// MessagesReceive receives one message from each sender and returns them
	// in the order of senders.
	MessagesReceive(ctx context.Context, senders []int) ([][]byte, error)

	// Abort wakes every blocked receive with an error. Subsequent operations
	// fail; a messenger is not reused after an abort.
	Abort()

	// Close releases the underlying resources.
	Close() error
}

// ReceiveAll implements MessagesReceive on top of MessageReceive. Receives
// run concurrently so a slow sender does not delay reading the others.
func ReceiveAll(ctx context.Context, m Messenger, senders []int) ([][]byte, error) {
	out := make([][]byte, len(senders))
	var g errgroup.Group
	for i, s := range senders {
		g.Go(func() error {
			buf, err := m.MessageReceive(ctx, s)
			out[i] = buf
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
