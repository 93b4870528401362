package mqttlite

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"
)

// closeFlushTimeout bounds how long a closing connection may spend writing
// packets that were queued before Close.
const closeFlushTimeout = time.Second

// Runner owns a Client and drives it from a dedicated goroutine. It
// provides the Client's Transport over a Dialer, so network IO, timers and
// callers on any goroutine are serialized onto the engine. Event handlers run on the
// Runner goroutine and may call Client methods directly.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	dialer Dialer
	client *Client
	log    Logger

	tickInterval time.Duration
	sendQueueLen int
	dialTimeout  time.Duration
	readBufSize  int

	ops  chan func()
	done chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once

	// Owned by the Runner goroutine.
	cur      *runnerConn
	deferred []func()
}

// runnerConn is one dialed connection. A connection that is no longer
// Runner.cur is stale and its callbacks are dropped.
type runnerConn struct {
	conn       Conn
	sendq      chan []byte
	stop       chan struct{}
	cancelDial context.CancelFunc
	stopped    bool
}

func (rc *runnerConn) shutdown() {
	if rc.stopped {
		return
	}
	rc.stopped = true
	rc.cancelDial()
	close(rc.stop)

	// Unblocks a writer stuck on a peer that stopped reading.
	if rc.conn != nil {
		rc.conn.SetWriteDeadline(time.Now().Add(closeFlushTimeout))
	}
}

// NewRunner creates a Client over dialer and starts its goroutine. The
// Runner stops when ctx is cancelled or Close is called.
func NewRunner(ctx context.Context, dialer Dialer, opts ...Option) (*Runner, error) {
	if dialer == nil {
		return nil, ErrNoTransport
	}

	o := applyOptions(opts...)

	ctx, cancel := context.WithCancel(ctx)
	r := &Runner{
		ctx:          ctx,
		cancel:       cancel,
		dialer:       dialer,
		log:          o.logger,
		tickInterval: o.tickInterval,
		sendQueueLen: o.sendQueueLen,
		dialTimeout:  o.dialTimeout,
		readBufSize:  o.rxBufferSize,
		ops:          make(chan func()),
		done:         make(chan struct{}),
	}

	client, err := NewClient(runnerTransport{r}, opts...)
	if err != nil {
		cancel()
		return nil, err
	}
	r.client = client

	r.wg.Add(1)
	go r.run()

	return r, nil
}

func (r *Runner) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return
		case fn := <-r.ops:
			fn()
		case <-ticker.C:
			r.client.Tick()
		}
		r.runDeferred()
	}
}

func (r *Runner) runDeferred() {
	for len(r.deferred) > 0 {
		fn := r.deferred[0]
		r.deferred = r.deferred[1:]
		fn()
	}
	r.deferred = nil
}

// shutdown ends the session and releases the Client.
func (r *Runner) shutdown() {
	if r.client.State() != StateDisconnected && r.client.State() != StateTCPDisconnecting {
		if err := r.client.Disconnect(); err != nil {
			r.log.Debug("disconnect on shutdown failed", LogFields{LogFieldError: err.Error()})
		}
	}

	if rc := r.cur; rc != nil {
		r.cur = nil
		rc.shutdown()
		r.client.Closed(nil)
	}
	r.runDeferred()

	if err := r.client.Close(); err != nil {
		r.log.Debug("client close failed", LogFields{LogFieldError: err.Error()})
	}

	close(r.done)
}

// post hands fn to the Runner goroutine. It reports false once the Runner
// has stopped.
func (r *Runner) post(fn func()) bool {
	select {
	case r.ops <- fn:
		return true
	case <-r.done:
		return false
	}
}

// Do runs fn on the Runner goroutine and returns its result.
func (r *Runner) Do(fn func(c *Client) error) error {
	errCh := make(chan error, 1)
	if !r.post(func() { errCh <- fn(r.client) }) {
		return ErrRunnerClosed
	}
	return <-errCh
}

// Connect starts a session. See Client.Connect.
func (r *Runner) Connect(host string, port uint16, info ClientInfo, handler EventHandler) error {
	return r.Do(func(c *Client) error {
		return c.Connect(host, port, info, handler)
	})
}

// ConnectAndWait starts a session and blocks until the connection attempt
// completes or ctx is done. A connection lost before CONNACK ends the wait
// with the DisconnectEvent error. All events still go to handler, which may
// be nil.
func (r *Runner) ConnectAndWait(ctx context.Context, host string, port uint16, info ClientInfo, handler EventHandler) error {
	result := make(chan error, 1)
	waiting := true

	wrapped := func(c *Client, e Event) {
		if waiting {
			switch ev := e.(type) {
			case *ConnectEvent:
				waiting = false
				result <- ev.Err()
			case *DisconnectEvent:
				waiting = false
				if ev.Err == nil {
					result <- ErrDisconnected
				} else {
					result <- ev.Err
				}
			}
		}
		if handler != nil {
			handler(c, e)
		}
	}

	if err := r.Connect(host, port, info, wrapped); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRunnerClosed
	}
}

// Disconnect ends the session. See Client.Disconnect.
func (r *Runner) Disconnect() error {
	return r.Do(func(c *Client) error { return c.Disconnect() })
}

// Subscribe requests a subscription. See Client.Subscribe.
func (r *Runner) Subscribe(topic string, qos byte, arg any) error {
	return r.Do(func(c *Client) error { return c.Subscribe(topic, qos, arg) })
}

// Unsubscribe removes a subscription. See Client.Unsubscribe.
func (r *Runner) Unsubscribe(topic string, arg any) error {
	return r.Do(func(c *Client) error { return c.Unsubscribe(topic, arg) })
}

// Publish sends a message. See Client.Publish.
func (r *Runner) Publish(topic string, payload []byte, qos byte, retain bool, arg any) error {
	return r.Do(func(c *Client) error { return c.Publish(topic, payload, qos, retain, arg) })
}

// State returns the session state.
func (r *Runner) State() State {
	var state State
	if err := r.Do(func(c *Client) error {
		state = c.State()
		return nil
	}); err != nil {
		return StateDisconnected
	}
	return state
}

// IsConnected reports whether the MQTT session is established.
func (r *Runner) IsConnected() bool {
	return r.State() == StateMQTTConnected
}

// Done is closed when the Runner has stopped.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Close disconnects, stops the Runner and waits for its goroutines.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		r.wg.Wait()
	})
	return nil
}

// runnerTransport is the Transport a Runner gives its Client. Its methods
// run on the Runner goroutine.
type runnerTransport struct {
	r *Runner
}

func (t runnerTransport) Open(host string, port uint16) error { return t.r.open(host, port) }
func (t runnerTransport) Send(b []byte) error                 { return t.r.send(b) }
func (t runnerTransport) Close() error                        { return t.r.closeConn() }

func (r *Runner) open(host string, port uint16) error {
	if r.cur != nil {
		return ErrInvalidState
	}

	dialCtx, cancelDial := context.WithTimeout(r.ctx, r.dialTimeout)
	rc := &runnerConn{
		sendq:      make(chan []byte, r.sendQueueLen),
		stop:       make(chan struct{}),
		cancelDial: cancelDial,
	}
	r.cur = rc

	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancelDial()

		conn, err := r.dialer.Dial(dialCtx, address)
		delivered := r.post(func() { r.dialed(rc, conn, err) })
		if !delivered && conn != nil {
			conn.Close()
		}
	}()

	return nil
}

func (r *Runner) dialed(rc *runnerConn, conn Conn, err error) {
	if r.cur != rc || rc.stopped {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		r.cur = nil
		rc.shutdown()
		r.client.Opened(err)
		return
	}

	rc.conn = conn
	r.log.Debug("transport connected", LogFields{LogFieldRemoteAddr: conn.RemoteAddr().String()})

	r.wg.Add(2)
	go r.readLoop(rc)
	go r.writeLoop(rc)

	r.client.Opened(nil)
}

// send copies b onto the writer queue.
func (r *Runner) send(b []byte) error {
	rc := r.cur
	if rc == nil || rc.conn == nil || rc.stopped {
		return ErrTransportClosed
	}

	buf := make([]byte, len(b))
	copy(buf, b)

	select {
	case rc.sendq <- buf:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// closeConn detaches the current connection. Its writer flushes packets
// queued before the close in the background. Client.Closed follows once the
// current call returns.
func (r *Runner) closeConn() error {
	rc := r.cur
	if rc == nil {
		return ErrTransportClosed
	}

	r.cur = nil
	rc.shutdown()
	r.deferred = append(r.deferred, func() { r.client.Closed(nil) })
	return nil
}

// finish reports the loss of rc to the Client once.
func (r *Runner) finish(rc *runnerConn, err error) {
	if r.cur != rc {
		return
	}

	r.cur = nil
	rc.shutdown()
	r.client.Closed(err)
}

func (r *Runner) readLoop(rc *runnerConn) {
	defer r.wg.Done()

	buf := make([]byte, r.readBufSize)
	for {
		n, err := rc.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !r.post(func() {
				if r.cur == rc {
					r.client.Received(data)
				}
			}) {
				return
			}
		}

		if err != nil {
			r.post(func() { r.finish(rc, err) })
			return
		}
	}
}

func (r *Runner) writeLoop(rc *runnerConn) {
	defer r.wg.Done()
	defer rc.conn.Close()

	for {
		select {
		case b := <-rc.sendq:
			if !r.write(rc, b) {
				return
			}
		case <-rc.stop:
			r.flush(rc)
			return
		case <-r.done:
			select {
			case <-rc.stop:
				r.flush(rc)
			default:
			}
			return
		}
	}
}

// flush writes whatever is still queued on a detached connection.
func (r *Runner) flush(rc *runnerConn) {
	rc.conn.SetWriteDeadline(time.Now().Add(closeFlushTimeout))

	for {
		select {
		case b := <-rc.sendq:
			if _, err := rc.conn.Write(b); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (r *Runner) write(rc *runnerConn, b []byte) bool {
	n, err := rc.conn.Write(b)
	if n > 0 {
		if !r.post(func() {
			if r.cur == rc {
				r.client.Sent(n)
			}
		}) {
			return false
		}
	}

	if err != nil {
		r.post(func() { r.finish(rc, err) })
		return false
	}

	return true
}

var _ Transport = runnerTransport{}
