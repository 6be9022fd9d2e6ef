package state

import (
	"time"

	"github.com/dnstrustd/dnstrustd/internal/constants"
)

var consts = constants.Get()

var (
	retryTimerStart    = consts.RetryTimerStart
	retryTimerMax      = consts.RetryTimerMax
	retryTimerCountMax = consts.RetryTimerCountMax
	tcpRetrySeconds    = consts.TCPRetrySeconds
)

// nowUnix is a var so tests can stub time without reaching for a clock interface throughout the
// package - the same trick trustydns-proxy uses for its startTime/uptime() helpers.
var nowUnix = func() int64 { return time.Now().Unix() }
