// dnstrustd watches the DHCP-supplied DNS resolvers and drives the host resolver configuration
// between a local validating resolver and the raw upstreams, exposing a mutually-authenticated
// TLS control server for an attached panel.
package main

import (
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dnstrustd/dnstrustd/internal/constants"
	"github.com/dnstrustd/dnstrustd/internal/control"
	"github.com/dnstrustd/dnstrustd/internal/osutil"
	"github.com/dnstrustd/dnstrustd/internal/prober"
	"github.com/dnstrustd/dnstrustd/internal/reporter"
	"github.com/dnstrustd/dnstrustd/internal/reshook"
	"github.com/dnstrustd/dnstrustd/internal/state"
	"github.com/dnstrustd/dnstrustd/internal/tlsutil"
	"github.com/dnstrustd/dnstrustd/internal/update"

	"github.com/google/gops/agent"
)

// Program-wide variables
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer
	stderr io.Writer

	startTime   = time.Now()
	stopChannel chan os.Signal
	flagSet     *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ProgramName, ": ")
	fmt.Fprintln(stderr, args...)
	return 1
}

func stopMain() {
	stopChannel <- os.Interrupt
}

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution. stopChannel is buffered as the reader may disappear if there is a fatal error and
// multiple writers may try to write to the channel and we don't want those writers to stall
// forever.
func mainInit(out, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainState(Initial)
	stopChannel = make(chan os.Signal, 4)
	osutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	defer mainState(Stopped)
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	err := parseCommandLine(args)
	if err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ProgramName, "Version:", consts.Version)
		return 0
	}
	if flagSet.NArg() > 0 {
		return fatal("Unexpected parameters on the command line", strings.Join(flagSet.Args(), " "))
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal("gops:", err)
		}
	}

	var reporters []reporter.Reporter

	if cfg.tlsServerCertFiles.NArg() == 0 || cfg.tlsServerKeyFiles.NArg() == 0 {
		return fatal("Must supply at least one --tls-cert and --tls-key pair for the control server")
	}
	tlsConfig, err := tlsutil.NewServerTLSConfig(cfg.tlsUseSystemRoots, cfg.tlsClientCAFiles.Args(),
		cfg.tlsServerCertFiles.Args(), cfg.tlsServerKeyFiles.Args())
	if err != nil {
		return fatal(err)
	}

	// Mutual TLS is not optional (spec.md §4.1): the trust anchor for panel client certs is
	// the daemon's own certificate file, in addition to whatever --tls-client-ca/
	// --tls-use-system-roots pool NewServerTLSConfig already built. This must hold even if the
	// operator supplied no other trust anchor at all.
	if tlsConfig.ClientCAs == nil {
		tlsConfig.ClientCAs = x509.NewCertPool()
	}
	for _, cert := range tlsConfig.Certificates {
		for _, der := range cert.Certificate {
			leaf, err := x509.ParseCertificate(der)
			if err != nil {
				return fatal("parsing server certificate as client trust anchor:", err)
			}
			tlsConfig.ClientCAs.AddCert(leaf)
		}
	}
	tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert

	writer := reshook.NewDefaultWriter(cfg.resolvConf, cfg.domain, cfg.search, cfg.darwinScript)
	arbiter := reshook.New(writer)

	probeCfg := prober.Config{Timeout: 4 * time.Second}
	probr := prober.New(probeCfg)

	var updater update.Notifier = update.Noop{}

	engineCfg := state.Config{
		AuthorityAddrs: cfg.authorityAddrs.Args(),
		UpdateDesired:  cfg.checkUpdates,
	}
	engineCfg.HTTPAddrProbe.IP = cfg.httpProbeIP
	engineCfg.HTTPAddrProbe.QName = cfg.httpProbeQName
	for _, pair := range cfg.httpDescProbes.Args() {
		parts := strings.SplitN(pair, "|", 2)
		if len(parts) != 2 {
			return fatal("--http-desc-probe must be ip|url, got", pair)
		}
		engineCfg.HTTPDescProbes = append(engineCfg.HTTPDescProbes, struct{ IP, Desc string }{parts[0], parts[1]})
	}

	listenAddrs := cfg.controlAddrs.Args()
	if len(listenAddrs) == 0 {
		listenAddrs = defaultControlAddrs()
	}

	srvCfg := control.Config{
		ListenAddrs:    listenAddrs,
		TLSConfig:      tlsConfig,
		MaxActive:      cfg.maxActive,
		CurrentVersion: consts.Version,
		Stdout:         stdout,
		OnStop:         stopMain,
	}

	// The engine requires a state.Notifier at construction, but the control server that
	// notifies in turn requires an Engine. We break the cycle with a forwarding shim: the shim
	// is passed to state.New as the Notifier, and pointed at srv once srv has been built.
	shim := &notifierShim{}
	engine := state.New(engineCfg, arbiter, probr, shim, updater)
	srv := control.New(srvCfg, engine)
	shim.srv = srv

	reporters = append(reporters, engine, srv)

	if cfg.verbose {
		fmt.Fprintln(stdout, consts.ProgramName, consts.Version, "Starting")
		fmt.Fprintln(stdout, "Control listener:", strings.Join(listenAddrs, ", "))
		fmt.Fprintln(stdout, "Managed resolv.conf:", cfg.resolvConf)
	}

	if err := srv.Listen(); err != nil {
		return fatal(err)
	}

	errorChannel := make(chan error, 1)

	go func(setuidName, setgidName, chrootDir string, verbose bool, stdout io.Writer) {
		time.Sleep(3 * time.Second)
		err := osutil.Constrain(setuidName, setgidName, chrootDir)
		if err != nil {
			errorChannel <- err
			return
		}
		if verbose {
			fmt.Fprintf(stdout, "Constraints: %s\n", osutil.ConstraintReport())
		}
	}(cfg.setuidName, cfg.setgidName, cfg.chrootDir, cfg.verbose, stdout)

	mainState(Started)
	nextStatusIn := nextInterval(time.Now(), cfg.statusInterval)

Running:
	for {
		select {
		case s := <-stopChannel:
			if osutil.IsSignalUSR1(s) {
				statusReport("User1", false, reporters)
				break
			}
			if cfg.verbose {
				fmt.Fprintln(stdout, "\nSignal", s)
			}
			break Running

		case err := <-errorChannel:
			return fatal(err)

		case <-time.After(nextStatusIn):
			if cfg.verbose {
				statusReport("Status", true, reporters)
			}
			nextStatusIn = nextInterval(time.Now(), cfg.statusInterval)
		}
	}

	srv.Shutdown()
	mainState(Stopped)

	if cfg.verbose {
		statusReport("Status", true, reporters)
		fmt.Fprintln(stdout, consts.ProgramName, consts.Version, "Exiting after", uptime())
	}

	return 0
}

// notifierShim breaks the construction cycle between state.New (which needs a state.Notifier)
// and control.New (which needs the resulting Engine): it's handed to the engine immediately and
// only points at the real server once both exist.
type notifierShim struct {
	srv *control.Server
}

func (n *notifierShim) NotifyState(s state.Snapshot) { n.srv.NotifyState(s) }
func (n *notifierShim) NotifyUpdate(version string)  { n.srv.NotifyUpdate(version) }

// defaultControlAddrs returns the loopback addresses the control server binds when the operator
// supplied no --control-addr at all: both v4 and v6, per spec.md §4.1. A host without IPv6
// loopback configured simply fails that one bind in Server.Listen, which is not itself fatal.
func defaultControlAddrs() []string {
	return []string{
		fmt.Sprintf("127.0.0.1:%d", consts.DefaultControlPort),
		fmt.Sprintf("[::1]:%d", consts.DefaultControlPort),
	}
}

func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

func uptime() string {
	return time.Now().Sub(startTime).Truncate(time.Second).String()
}

func statusReport(what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(stdout, "Status Up:", consts.ProgramName, consts.Version, uptime())
	for _, r := range reporters {
		reps := strings.Split(r.Report(resetCounters), "\n")
		for _, s := range reps {
			if len(s) > 0 {
				fmt.Fprintf(stdout, "%s %s: %s\n", what, r.Name(), s)
			}
		}
	}
}
