// Package prober implements the state.Prober (and optional state.ProbeTester) capability: for
// each probe.Entry in a sweep, it runs the plain-DNS/TCP/TLS/HTTP check appropriate to the
// entry's Kind and calls Entry.Finish with the outcome. Grounded on
// internal/resolver/local.Resolve's DNSClientExchanger use of miekg/dns, generalized from a
// single best-server resolve loop to one-shot reachability probes fanned out concurrently.
package prober

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dnstrustd/dnstrustd/internal/probe"
	"github.com/dnstrustd/dnstrustd/internal/tlsutil"
	"github.com/miekg/dns"
	"golang.org/x/net/http2"
)

const me = "prober.Prober"

// Config parameterizes a Prober.
type Config struct {
	Timeout time.Duration // Per-probe deadline; defaults to 4s if zero.

	// HTTPClient is used for the captive-portal probes. If nil, a client with a short timeout
	// and no redirect-following (redirects are themselves a captive-portal signal) is used.
	HTTPClient *http.Client
}

// Prober is the concrete probe collaborator. It is safe for concurrent use; StartSweep may be
// called again before a previous sweep's goroutines have all finished, since each Entry it was
// given belongs to that sweep alone (the state engine discards superseded entries).
type Prober struct {
	cfg Config

	mu            sync.Mutex
	lastEntries   []*probe.Entry // retained only so Test*/Unsafe can re-run the last-seen kind
	lastHTTPEntry *probe.Entry
}

var _ interface {
	StartSweep(entries []*probe.Entry, done func())
} = (*Prober)(nil)

// New constructs a Prober.
func New(cfg Config) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.HTTPClient == nil {
		transport := &http.Transport{}
		http2.ConfigureTransport(transport) // best-effort; falls back to h1 if it fails
		cfg.HTTPClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &Prober{cfg: cfg}
}

// StartSweep runs one goroutine per entry and calls done() once every entry has reported a
// result, matching spec.md §3's "probe collaborator reports finished/works/reason per entry,
// core is notified when the sweep completes" contract.
func (p *Prober) StartSweep(entries []*probe.Entry, done func()) {
	p.mu.Lock()
	p.lastEntries = entries
	for _, e := range entries {
		if e.Kind == probe.KindHTTPAddr || e.Kind == probe.KindHTTPDesc {
			p.lastHTTPEntry = e
		}
	}
	p.mu.Unlock()

	if len(entries) == 0 {
		done()
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(entries))
	for _, e := range entries {
		go func(e *probe.Entry) {
			defer wg.Done()
			p.run(e)
		}(e)
	}

	go func() {
		wg.Wait()
		done()
	}()
}

func (p *Prober) run(e *probe.Entry) {
	switch e.Kind {
	case probe.KindCache:
		p.exchangeProbe(e, "udp")
	case probe.KindTCP:
		p.exchangeProbe(e, "tcp")
	case probe.KindSSL:
		p.exchangeProbe(e, "tcp-tls")
	case probe.KindAuthority:
		p.exchangeProbe(e, "tcp-tls")
	case probe.KindHTTPAddr:
		p.httpAddrProbe(e)
	case probe.KindHTTPDesc:
		p.httpDescProbe(e)
	default:
		e.Finish(false, "unknown probe kind")
	}
}

// exchangeProbe sends a minimal query (SOA for the root) to e.Name:e.Port over the given
// miekg/dns network and considers any well-formed, non-error reply a success - this is a
// reachability probe, not a resolution, so the actual rcode returned by the server doesn't
// matter as long as the transport round-trip completed.
func (p *Prober) exchangeProbe(e *probe.Entry, net string) {
	client := &dns.Client{Net: net, Timeout: p.cfg.Timeout}
	if net == "tcp-tls" {
		tlsCfg, err := tlsutil.NewClientTLSConfig(true, nil, "", "")
		if err != nil {
			e.Finish(false, me+": tls config: "+err.Error())
			return
		}
		client.TLSConfig = tlsCfg
	}

	msg := new(dns.Msg)
	msg.SetQuestion(".", dns.TypeSOA)

	addr := fmt.Sprintf("%s:%d", e.Name, e.Port)
	reply, _, err := client.Exchange(msg, addr)
	if err != nil {
		e.Finish(false, err.Error())
		return
	}
	if reply == nil {
		e.Finish(false, "empty reply")
		return
	}
	e.Finish(true, "")
}

// httpAddrProbe resolves e.HostC against the DNS server at e.Name and checks for a plausible
// A/AAAA answer. A captive portal typically hijacks this at the DNS layer, returning its own
// portal-host address for every name; we can't know the "correct" address in advance, so we only
// check that *some* address comes back - the HTTP-layer probe below is what actually detects
// captive-portal interception.
func (p *Prober) httpAddrProbe(e *probe.Entry) {
	client := &dns.Client{Net: "udp", Timeout: p.cfg.Timeout}
	msg := new(dns.Msg)
	qtype := dns.TypeA
	if e.IsIPv6 {
		qtype = dns.TypeAAAA
	}
	msg.SetQuestion(dns.Fqdn(e.HostC), qtype)

	addr := fmt.Sprintf("%s:53", e.Name)
	reply, _, err := client.Exchange(msg, addr)
	if err != nil {
		e.Finish(false, err.Error())
		return
	}
	if reply == nil || reply.Rcode != dns.RcodeSuccess || len(reply.Answer) == 0 {
		e.Finish(false, "no answer")
		return
	}

	p.probeCaptivePortalHTTP(e, "http://"+e.HostC+"/")
}

// httpDescProbe fetches a fixed, well-known URL (e.HTTPDesc) directly from e.Name and checks
// whether a captive portal is intercepting the request.
func (p *Prober) httpDescProbe(e *probe.Entry) {
	p.probeCaptivePortalHTTP(e, e.HTTPDesc)
}

// probeCaptivePortalHTTP fetches url and distinguishes three outcomes: transport failure (works
// = false), an unexpected redirect or non-204/200 status typical of a captive portal's injected
// page (works = true, reason = reasonCaptivePortal, matching classify.go's sentinel), or a clean
// response (works = true, no reason).
func (p *Prober) probeCaptivePortalHTTP(e *probe.Entry, url string) {
	resp, err := p.cfg.HTTPClient.Get(url)
	if err != nil {
		e.Finish(false, err.Error())
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		e.Finish(true, captivePortalReason)
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		e.Finish(true, "")
	default:
		e.Finish(true, captivePortalReason)
	}
}

// captivePortalReason must match state.reasonCaptivePortal's string value; duplicated here
// (rather than imported) to keep internal/state free of a dependency on internal/prober.
const captivePortalReason = "captive-portal"

// TestTCP, TestSSL, TestHTTP and Unsafe implement state.ProbeTester: they re-run the most
// recently seen probe of the corresponding kind on demand, for the panel's manual one-shot test
// commands. They are best-effort and silently do nothing if no such entry has ever been seen.
func (p *Prober) TestTCP()  { p.rerunKind(probe.KindTCP) }
func (p *Prober) TestSSL()  { p.rerunKind(probe.KindSSL) }
func (p *Prober) TestHTTP() { p.rerunHTTP() }

// Unsafe forces an immediate insecure probe of the raw candidate addresses without DNSSEC
// validation concerns - since this prober never validates DNSSEC itself (that's the local
// validating resolver's job, out of scope per spec.md's Non-goals), Unsafe is equivalent to
// re-running the whole last-seen entry set.
func (p *Prober) Unsafe() {
	p.mu.Lock()
	entries := p.lastEntries
	p.mu.Unlock()
	for _, e := range entries {
		go p.run(e)
	}
}

func (p *Prober) rerunKind(kind probe.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.lastEntries {
		if e.Kind == kind {
			go p.run(e)
		}
	}
}

func (p *Prober) rerunHTTP() {
	p.mu.Lock()
	e := p.lastHTTPEntry
	p.mu.Unlock()
	if e != nil {
		go p.run(e)
	}
}
