// Package control implements the daemon's control server: a mutually-authenticated TLS listener
// bound to loopback that accepts panel connections, dispatches the one-shot and persistent
// command sets, and pushes state/update broadcasts to every subscribed panel. Grounded on
// trustydns-server's net/http-based server.go for its struct shape (concurrencytracker,
// connectiontracker, reporter.Reporter) and tlsutil for the mutual-TLS listener config; the
// line-oriented protocol itself has no HTTP analogue in the teacher and is written directly
// against net.Listener/net.Conn, one goroutine per connection rather than the source's single
// event-loop thread (see SPEC_FULL.md §5).
package control

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dnstrustd/dnstrustd/internal/concurrencytracker"
	"github.com/dnstrustd/dnstrustd/internal/connectiontracker"
	"github.com/dnstrustd/dnstrustd/internal/state"
)

const me = "control.Server"

// Config parameterizes a Server.
type Config struct {
	// ListenAddrs is every loopback address the control server binds, e.g.
	// {"127.0.0.1:8955", "[::1]:8955"}. Spec.md §4.1 requires binding both v4 and v6 loopback
	// when both are present; a host with no IPv6 loopback simply fails that one bind, which
	// Listen treats as non-fatal as long as at least one address bound successfully.
	ListenAddrs []string
	TLSConfig   *tls.Config
	MaxActive  int // Maximum simultaneous connections; excess are rejected. 0 uses the constants default.

	CurrentVersion string // Surfaced in the "update" push

	Stdout io.Writer // Diagnostic output; nil discards

	// OnStop is called from the connection goroutine that received the "stop" command, each
	// time a panel asks the daemon to terminate its event loop (spec.md §4.1's "stop" entry);
	// the server does not guard against a second call. Typically set by main to close a shutdown channel. nil is a no-op,
	// matching a control server run without a listening daemon around it (e.g. in tests).
	OnStop func()
}

// Server is the control server. It owns the connection list, the listeners, and the trackers
// shared by every listener; it implements state.Notifier so an *state.Engine can broadcast directly to it.
type Server struct {
	cfg    Config
	engine Engine

	listeners []net.Listener

	ccTrk   concurrencytracker.Counter
	connTrk *connectiontracker.Tracker

	mu      sync.Mutex
	conns   map[*conn]struct{}
	stopped bool

	stats
}

type stats struct {
	accepted int
	rejected int
}

// New constructs a Server bound to the given Engine. Listen must be called to actually start
// accepting connections.
func New(cfg Config, engine Engine) *Server {
	if cfg.MaxActive <= 0 {
		cfg.MaxActive = consts.DefaultMaxActive
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		conns:   make(map[*conn]struct{}),
		connTrk: connectiontracker.New(me),
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.cfg.Stdout == nil {
		return
	}
	fmt.Fprintf(s.cfg.Stdout, format+"\n", args...)
}

// Listen binds every configured address and starts one accept loop per listener, each in its own
// goroutine. It returns once every bindable listener is bound (so callers know whether the bind
// succeeded, the init-fatal case from spec.md §7), but the accept loops themselves run
// asynchronously. A single address failing to bind (e.g. no IPv6 loopback on this host) is not
// itself fatal; Listen only fails if none of the configured addresses bound.
func (s *Server) Listen() error {
	if len(s.cfg.ListenAddrs) == 0 {
		return fmt.Errorf(me + ": no listen addresses configured")
	}
	var lastErr error
	for _, addr := range s.cfg.ListenAddrs {
		l, err := tls.Listen("tcp", addr, s.cfg.TLSConfig)
		if err != nil {
			s.logf("%s: listen %s: %s", me, addr, err)
			lastErr = err
			continue
		}
		s.listeners = append(s.listeners, l)
	}
	if len(s.listeners) == 0 {
		return fmt.Errorf(me+": no listen address bound: %w", lastErr)
	}
	for _, l := range s.listeners {
		go s.acceptLoop(l)
	}
	return nil
}

func (s *Server) acceptLoop(l net.Listener) {
	for {
		netConn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			s.logf("%s: accept on %s: %s", me, l.Addr(), err)
			return
		}
		s.handleAccept(netConn)
	}
}

func (s *Server) handleAccept(netConn net.Conn) {
	s.mu.Lock()
	if len(s.conns) >= s.cfg.MaxActive {
		s.rejected++
		s.mu.Unlock()
		s.logf("%s: rejecting connection from %s: max_active (%d) reached",
			me, netConn.RemoteAddr(), s.cfg.MaxActive)
		netConn.Close()
		return
	}
	s.accepted++
	s.mu.Unlock()

	c := newConn(s, netConn)
	s.addConn(c)
	s.ccTrk.Add()
	s.connTrk.ConnState(netConn.RemoteAddr().String(), time.Now(), http.StateNew)
	go func() {
		defer s.ccTrk.Done()
		defer s.removeConn(c)
		c.serve()
	}()
}

func (s *Server) addConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// activeConns returns a snapshot of every currently-registered connection.
func (s *Server) activeConns() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// NotifyState implements state.Notifier: it is called by the engine after every sweep completion
// or insecure-flag change and pushes a fresh results block to every subscribed connection,
// coalescing per spec.md §4.1's broadcast rule.
func (s *Server) NotifyState(snap state.Snapshot) {
	block := renderResultsBlock(snap)
	for _, c := range s.activeConns() {
		if c.subscribed() {
			c.pushLocked(block)
		}
	}
}

// NotifyUpdate implements state.Notifier.
func (s *Server) NotifyUpdate(version string) {
	line := renderUpdateSignal(s.cfg.CurrentVersion, version)
	for _, c := range s.activeConns() {
		if c.subscribed() {
			c.pushLocked(line)
		}
	}
}

// StopPanels implements the "stoppanels" command: it pushes "stop\n" to every subscribed
// connection with a bounded per-connection write deadline (spec.md §9's structured-concurrency
// equivalent of the source's blocking-mode farewell write), best-effort.
func (s *Server) StopPanels() {
	for _, c := range s.activeConns() {
		if c.subscribed() {
			c.pushBestEffort(stopLine, 2*time.Second)
		}
	}
}

// requestStop services the "stop" one-shot command by invoking the configured OnStop callback;
// every stop command invokes it again. It does not itself tear down the server; that's Shutdown's job, called by main
// once OnStop signals the rest of the daemon to unwind.
func (s *Server) requestStop() {
	s.mu.Lock()
	cb := s.cfg.OnStop
	s.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Shutdown stops accepting new connections and closes every currently open one.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	for _, l := range s.listeners {
		l.Close()
	}
	for _, c := range s.activeConns() {
		c.close()
	}
}

// Name and Report implement reporter.Reporter.
func (s *Server) Name() string { return me }

func (s *Server) Report(resetCounters bool) string {
	s.mu.Lock()
	accepted, rejected := s.accepted, s.rejected
	if resetCounters {
		s.accepted, s.rejected = 0, 0
	}
	active := len(s.conns)
	s.mu.Unlock()
	return fmt.Sprintf("accepted=%d rejected=%d active=%d peak_concurrency=%d",
		accepted, rejected, active, s.ccTrk.Peak(resetCounters))
}
