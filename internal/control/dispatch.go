package control

import "strings"

// dispatchOneShot handles the single line received in command_read state, per spec.md §4.1's
// command table. It returns true when the connection upgrades to the persistent channel
// (results/cmdtray) and false when the connection should close immediately afterwards (every
// other command, including status, which writes one block and closes).
func (c *conn) dispatchOneShot(line string) bool {
	verb, rest := tokenizeCommand(line)

	switch verb {
	case "submit":
		c.srv.engine.Submit(strings.Fields(rest))
		return false

	case "reprobe":
		c.srv.engine.Reprobe()
		return false

	case "skip_http":
		c.srv.engine.SkipHTTP()
		return false

	case "hotspot_signon":
		c.srv.engine.HotspotSignon()
		return false

	case "results":
		c.writeDirect(renderResultsBlock(c.srv.engine.Snapshot()))
		c.startWriter()
		return true

	case "status":
		c.writeDirect(renderResultsBlock(c.srv.engine.Snapshot()))
		return false

	case "cmdtray":
		// Re-assert loopback first: on platforms where a relogin can silently replace
		// resolv.conf, this is the tray icon's chance to put it back before subscribing.
		c.srv.engine.ReassertLoopback()
		c.startWriter()
		return true

	case "unsafe":
		c.srv.engine.Unsafe()
		return false

	case "test_tcp":
		c.srv.engine.TestTCP()
		return false

	case "test_ssl":
		c.srv.engine.TestSSL()
		return false

	case "test_http":
		c.srv.engine.TestHTTP()
		return false

	case "test_update":
		c.srv.engine.TestUpdate()
		return false

	case "stoppanels":
		c.srv.StopPanels()
		return false

	case "stop":
		c.srv.requestStop()
		return false

	default:
		c.writeDirect(unknownCommandLine)
		return false
	}
}

// dispatchPersistent handles one line received on an already-subscribed connection's persistent
// command channel, per spec.md §4.1's "Persistent command channel" table. Unknown lines are
// logged and ignored rather than closing the connection.
func (c *conn) dispatchPersistent(line string) {
	verb, rest := tokenizeCommand(line)

	switch verb {
	case "insecure":
		switch strings.TrimSpace(rest) {
		case "yes":
			c.srv.engine.InsecureYes()
		case "no":
			c.srv.engine.InsecureNo()
		default:
			c.srv.logf("%s: unknown insecure argument %q from %s", me, rest, c.netConn.RemoteAddr())
		}

	case "reprobe":
		c.srv.engine.Reprobe()

	case "skip_http":
		c.srv.engine.SkipHTTP()

	case "hotspot_signon":
		c.srv.engine.HotspotSignon()

	case "update_cancel":
		c.srv.engine.UpdateCancel()

	case "update_ok":
		c.srv.engine.UpdateOk()

	default:
		c.srv.logf("%s: unknown persistent command %q from %s", me, line, c.netConn.RemoteAddr())
	}
}

// writeDirect writes a block synchronously, before this connection has a writer goroutine
// running. Used for the one-shot replies (results/status/unknown-command) that precede any
// possible upgrade to the persistent channel.
func (c *conn) writeDirect(block string) {
	c.netConn.Write([]byte(block))
}
