// Package tcpnet connects emulated parties over loopback TCP sockets.
//
// Every pair of parties shares one connection: the party with the higher
// index dials the lower one and announces itself with a 4-byte index. Frames
// are a 4-byte big-endian length followed by the payload. One reader
// goroutine per connection moves incoming frames into a per-sender queue.
package tcpnet

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ezoic/sealedml/mpc/transport"
	"github.com/ezoic/sealedml/pkg/errors"
)

const (
	maxFrameSize = 1 << 30
	queueDepth   = 256
	dialTimeout  = 10 * time.Second
)

// Messenger is one party's endpoint of the TCP mesh.
type Messenger struct {
	roleIndex int
	listener  net.Listener

	connMu sync.Mutex
	conns  map[int]net.Conn
	sendMu map[int]*sync.Mutex

	inbox map[int]chan []byte

	abortOnce sync.Once
	abortCh   chan struct{}
	closeCh   chan struct{}

	// readErrCh is closed once readErr is set
	readErrOnce sync.Once
	readErrCh   chan struct{}
	readErr     error

	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ transport.Messenger = (*Messenger)(nil)

// Listen opens the listeners for all parties. addrs[i] is the address party i
// binds to; port 0 picks a free port. The returned messengers are not yet
// connected, see Connect.
func Listen(addrs []string) ([]*Messenger, error) {
	ms := make([]*Messenger, len(addrs))
	for i, addr := range addrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			for _, m := range ms[:i] {
				_ = m.listener.Close()
			}
			return nil, errors.Wrapf(err, "party %d: listen on %s", i, addr)
		}
		ms[i] = &Messenger{
			roleIndex: i,
			listener:  l,
			conns:     make(map[int]net.Conn),
			sendMu:    make(map[int]*sync.Mutex),
			inbox:     make(map[int]chan []byte),
			abortCh:   make(chan struct{}),
			closeCh:   make(chan struct{}),
			readErrCh: make(chan struct{}),
		}
		for j := range addrs {
			if j != i {
				ms[i].inbox[j] = make(chan []byte, queueDepth)
				ms[i].sendMu[j] = &sync.Mutex{}
			}
		}
	}
	return ms, nil
}

// Addr returns the bound listen address.
func (m *Messenger) Addr() string { return m.listener.Addr().String() }

// Connect builds the full mesh between ms and starts the reader goroutines.
func Connect(ctx context.Context, ms []*Messenger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range ms {
		m := m
		// accept from every higher-indexed party
		g.Go(func() error {
			for k := m.roleIndex + 1; k < len(ms); k++ {
				conn, err := acceptWithContext(gctx, m.listener)
				if err != nil {
					return errors.Wrapf(err, "party %d: accept", m.roleIndex)
				}
				var hello [4]byte
				if _, err := io.ReadFull(conn, hello[:]); err != nil {
					_ = conn.Close()
					return errors.Wrapf(err, "party %d: handshake", m.roleIndex)
				}
				peer := int(binary.BigEndian.Uint32(hello[:]))
				if peer <= m.roleIndex || peer >= len(ms) {
					_ = conn.Close()
					return errors.Newf("party %d: unexpected peer index %d", m.roleIndex, peer)
				}
				m.addConn(peer, conn)
			}
			return nil
		})
		// dial every lower-indexed party
		g.Go(func() error {
			for k := 0; k < m.roleIndex; k++ {
				d := net.Dialer{Timeout: dialTimeout}
				conn, err := d.DialContext(gctx, "tcp", ms[k].Addr())
				if err != nil {
					return errors.Wrapf(err, "party %d: dial party %d", m.roleIndex, k)
				}
				var hello [4]byte
				binary.BigEndian.PutUint32(hello[:], uint32(m.roleIndex))
				if _, err := conn.Write(hello[:]); err != nil {
					_ = conn.Close()
					return errors.Wrapf(err, "party %d: handshake", m.roleIndex)
				}
				m.addConn(k, conn)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, m := range ms {
			_ = m.Close()
		}
		return err
	}
	for _, m := range ms {
		m.startReaders()
	}
	return nil
}

func acceptWithContext(ctx context.Context, l net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.Accept()
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		_ = l.Close()
		return nil, ctx.Err()
	}
}

func (m *Messenger) addConn(peer int, conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.conns[peer] = conn
}

func (m *Messenger) startReaders() {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	for peer, conn := range m.conns {
		m.wg.Add(1)
		go m.readLoop(peer, conn)
	}
}

func (m *Messenger) readLoop(peer int, conn net.Conn) {
	defer m.wg.Done()
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			m.setReadErr(peer, err)
			return
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n > maxFrameSize {
			m.setReadErr(peer, errors.Newf("frame of %d bytes exceeds limit", n))
			return
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(conn, buf); err != nil {
			m.setReadErr(peer, err)
			return
		}
		select {
		case m.inbox[peer] <- buf:
		case <-m.closeCh:
			return
		}
	}
}

func (m *Messenger) setReadErr(peer int, err error) {
	m.readErrOnce.Do(func() {
		m.readErr = errors.Wrapf(err, "party %d: read from party %d", m.roleIndex, peer)
		close(m.readErrCh)
	})
}

// MessageSend writes one frame to receiver.
func (m *Messenger) MessageSend(ctx context.Context, receiver int, buffer []byte) error {
	if receiver == m.roleIndex {
		return errors.NewValueError("tcpnet.MessageSend", "cannot send to self")
	}
	select {
	case <-m.abortCh:
		return errors.ErrAborted
	default:
	}
	m.connMu.Lock()
	conn, ok := m.conns[receiver]
	mu := m.sendMu[receiver]
	m.connMu.Unlock()
	if !ok || mu == nil {
		return errors.Newf("party %d: no connection to party %d", m.roleIndex, receiver)
	}

	frame := make([]byte, 4+len(buffer))
	binary.BigEndian.PutUint32(frame, uint32(len(buffer)))
	copy(frame[4:], buffer)

	mu.Lock()
	defer mu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}
	if _, err := conn.Write(frame); err != nil {
		return errors.Wrapf(err, "party %d: send to party %d", m.roleIndex, receiver)
	}
	return nil
}

// MessageReceive returns the next frame from sender. Frames that arrived
// before a connection failed are still delivered; after that the read error
// is returned.
func (m *Messenger) MessageReceive(ctx context.Context, sender int) ([]byte, error) {
	ch, ok := m.inbox[sender]
	if !ok {
		return nil, errors.NewValueError("tcpnet.MessageReceive", "sender out of range")
	}
	select {
	case buf := <-ch:
		return buf, nil
	case <-m.readErrCh:
		select {
		case buf := <-ch:
			return buf, nil
		default:
			return nil, m.readErr
		}
	case <-m.abortCh:
		return nil, errors.ErrAborted
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MessagesReceive receives one frame from each sender.
func (m *Messenger) MessagesReceive(ctx context.Context, senders []int) ([][]byte, error) {
	return transport.ReceiveAll(ctx, m, senders)
}

// Abort fails all blocked and future operations.
func (m *Messenger) Abort() {
	m.abortOnce.Do(func() { close(m.abortCh) })
}

// Close shuts the listener and connections and waits for the readers.
func (m *Messenger) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.Abort()
		close(m.closeCh)
		err = m.listener.Close()
		m.connMu.Lock()
		for _, c := range m.conns {
			_ = c.Close()
		}
		m.connMu.Unlock()
		m.wg.Wait()
	})
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
