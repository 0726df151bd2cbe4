// Package mocknet provides an in-memory Messenger network for emulated parties.
package mocknet

import (
	"container/list"
	"context"
	"sync"

	"github.com/ezoic/sealedml/mpc/transport"
	"github.com/ezoic/sealedml/pkg/errors"
)

// MockMessenger delivers messages through per-sender in-memory queues.
type MockMessenger struct {
	roleIndex int
	outs      []*MockMessenger
	mutex     sync.Mutex
	cond      *sync.Cond
	queues    []list.List
	isAbort   bool
	closed    bool
}

var _ transport.Messenger = (*MockMessenger)(nil)

func newMockMessenger(roleIndex int) *MockMessenger {
	m := &MockMessenger{roleIndex: roleIndex}
	m.cond = sync.NewCond(&m.mutex)
	return m
}

// NewMockNetwork creates nParties messengers already wired to each other.
func NewMockNetwork(nParties int) []*MockMessenger {
	messengers := make([]*MockMessenger, nParties)
	for i := range messengers {
		messengers[i] = newMockMessenger(i)
	}
	for _, m := range messengers {
		m.outs = messengers
		m.queues = make([]list.List, nParties)
	}
	return messengers
}

// MessageSend appends buffer to the receiver's queue for this sender.
func (m *MockMessenger) MessageSend(_ context.Context, receiver int, buffer []byte) error {
	if receiver == m.roleIndex {
		return errors.NewValueError("MockMessenger.MessageSend", "cannot send to self")
	}
	if receiver < 0 || receiver >= len(m.outs) {
		return errors.NewValueError("MockMessenger.MessageSend", "receiver out of range")
	}

	msg := make([]byte, len(buffer))
	copy(msg, buffer)

	dst := m.outs[receiver]
	dst.mutex.Lock()
	if dst.isAbort || dst.closed {
		dst.mutex.Unlock()
		return errors.ErrAborted
	}
	dst.queues[m.roleIndex].PushBack(msg)
	dst.mutex.Unlock()
	dst.cond.Broadcast()
	return nil
}

// MessageReceive blocks until a message from sender is queued, the context
// is done, or the messenger is aborted.
func (m *MockMessenger) MessageReceive(ctx context.Context, sender int) ([]byte, error) {
	if sender == m.roleIndex {
		return nil, errors.NewValueError("MockMessenger.MessageReceive", "cannot receive from self")
	}
	if sender < 0 || sender >= len(m.queues) {
		return nil, errors.NewValueError("MockMessenger.MessageReceive", "sender out of range")
	}

	stop := context.AfterFunc(ctx, func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		m.cond.Broadcast()
	})
	defer stop()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	queue := &m.queues[sender]
	for queue.Len() == 0 {
		if m.isAbort || m.closed {
			return nil, errors.ErrAborted
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.cond.Wait()
	}
	front := queue.Front()
	queue.Remove(front)
	return front.Value.([]byte), nil
}

// MessagesReceive receives one message from each sender.
func (m *MockMessenger) MessagesReceive(ctx context.Context, senders []int) ([][]byte, error) {
	return transport.ReceiveAll(ctx, m, senders)
}

// Abort wakes all blocked receivers.
func (m *MockMessenger) Abort() {
	m.mutex.Lock()
	m.isAbort = true
	m.mutex.Unlock()
	m.cond.Broadcast()
}

// Close marks the messenger closed; pending and future receives fail.
func (m *MockMessenger) Close() error {
	m.mutex.Lock()
	m.closed = true
	m.mutex.Unlock()
	m.cond.Broadcast()
	return nil
}
