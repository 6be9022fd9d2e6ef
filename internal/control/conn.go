package control

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dnstrustd/dnstrustd/internal/constants"
)

// conn is one accepted panel connection. The command_read/persist_read/persist_write states from
// spec.md §4.1 collapse to: a single reader goroutine (this one, running serve()) that blocks on
// line reads, and - once the connection upgrades to persistent - a writer goroutine fed by
// writeCh that owns all outbound writes. This is the goroutine-per-connection REDESIGN of the
// single-threaded want-read/want-write state machine (see SPEC_FULL.md §4.1).
type conn struct {
	srv     *Server
	netConn net.Conn
	reader  *bufio.Reader

	mu           sync.Mutex
	isPersistent bool
	writing      bool
	pending      string // latched "send this instead" block queued while a write is in flight
	writeCh      chan string
	done         chan struct{} // closed exactly once, by close()
	closed       bool
}

func newConn(srv *Server, netConn net.Conn) *conn {
	return &conn{
		srv:     srv,
		netConn: netConn,
		reader:  bufio.NewReaderSize(netConn, constants.Get().MaxLineLength),
		writeCh: make(chan string, 1),
		done:    make(chan struct{}),
	}
}

// subscribed reports whether this connection should receive broadcast pushes.
func (c *conn) subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isPersistent && !c.closed
}

// serve is the connection's entire lifecycle, run on its own goroutine.
func (c *conn) serve() {
	defer c.close()

	line, err := c.readLine()
	if err != nil {
		return
	}

	rest, ok := stripVersionPrefix(line)
	if !ok { // spec.md §8 scenario 4: version mismatch, no reply, drop
		return
	}

	if !c.dispatchOneShot(rest) {
		return
	}

	if !c.subscribed() {
		return
	}

	// Persistent channel: keep reading commands until the peer closes.
	for {
		line, err := c.readLine()
		if err != nil {
			return
		}
		if line == "" {
			continue // spec.md §4.1: empty lines on the persistent channel are ignored
		}
		c.dispatchPersistent(line)
	}
}

func (c *conn) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// startWriter launches the writer goroutine exactly once, the first time this connection
// upgrades to a persistent channel.
func (c *conn) startWriter() {
	c.mu.Lock()
	if c.isPersistent {
		c.mu.Unlock()
		return
	}
	c.isPersistent = true
	c.mu.Unlock()
	go c.writeLoop()
}

func (c *conn) writeLoop() {
	for {
		var block string
		select {
		case block = <-c.writeCh:
		case <-c.done:
			return
		}

		c.netConn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_, err := c.netConn.Write([]byte(block))
		c.netConn.SetWriteDeadline(time.Time{})
		if err != nil {
			c.close()
			return
		}

		c.mu.Lock()
		if c.pending != "" {
			next := c.pending
			c.pending = ""
			c.mu.Unlock()
			c.writeCh <- next
			continue
		}
		c.writing = false
		c.mu.Unlock()
	}
}

// pushLocked enqueues a freshly rendered block for delivery, coalescing with any write already
// in flight per spec.md §4.1's broadcast rule: a connection mid-flush latches the newest block
// rather than queuing an unbounded backlog.
func (c *conn) pushLocked(block string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.writing {
		c.pending = block
		return
	}
	c.writing = true
	c.writeCh <- block
}

// pushBestEffort is used by stoppanels: a bounded, best-effort direct write that doesn't
// participate in the coalescing queue (the daemon is shutting this panel down regardless).
func (c *conn) pushBestEffort(block string, timeout time.Duration) {
	c.netConn.SetWriteDeadline(time.Now().Add(timeout))
	c.netConn.Write([]byte(block))
	c.netConn.SetWriteDeadline(time.Time{})
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done) // unblocks writeLoop, if running
	c.netConn.Close()
	c.srv.connTrk.ConnState(c.netConn.RemoteAddr().String(), time.Now(), http.StateClosed)
}
