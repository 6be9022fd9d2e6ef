package main

import (
	"fmt"
	"io"
	"text/template"
	"time"
)

const usageMessageTemplate = `
NAME
          {{.ProgramName}} -- {{.PackageName}}

SYNOPSIS
          {{.ProgramName}} [options]

DESCRIPTION
          {{.ProgramName}} watches the DHCP-supplied DNS resolvers, probes them for plain,
          TCP and TLS reachability plus DNSSEC-capability, and drives the host's resolver
          configuration between a local validating resolver (127.0.0.1) and the raw upstreams.
          A mutually-authenticated TLS control server, bound to loopback, accepts commands and
          pushes state to attached panels.

          {{.ProgramName}} must be started with privileges sufficient to bind the control port
          and rewrite the managed resolv.conf; see --user/--group/--chroot to drop them again
          once started.

OPTIONS
          [-hv] [--version]
          [--control-addr host:port] ... [--max-active n]

          [--tls-cert file] ... [--tls-key file] ...
          [--tls-client-ca file] ... [--tls-use-system-roots]

          [--resolv-conf file] [--domain name] [--search list]
          [--darwin-script file]

          [--authority address] ...
          [--http-probe-ip ip] [--http-probe-qname name]
          [--http-desc-probe ip|url] ...

          [--check-updates]
          [-i status-report-interval]

          [--gops]

          [--user name] [--group name] [--chroot dir]

`

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err)
	}
	if err := tmpl.Execute(out, consts); err != nil {
		panic(err)
	}
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied arguments. It
// starts from scratch each time so test wrappers can call it repeatedly.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.verbose, "v", false, "Verbose status and stats - otherwise only errors are output")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	flagSet.Var(&cfg.controlAddrs, "control-addr",
		fmt.Sprintf("Loopback `address:port` for the panel control listener, repeatable "+
			"(default 127.0.0.1:%d and [::1]:%d)", consts.DefaultControlPort, consts.DefaultControlPort))
	flagSet.IntVar(&cfg.maxActive, "max-active", consts.DefaultMaxActive, "Maximum simultaneous panel connections")

	flagSet.Var(&cfg.tlsServerCertFiles, "tls-cert", "TLS Server Certificate `file`")
	flagSet.Var(&cfg.tlsServerKeyFiles, "tls-key", "TLS Server Key `file`")
	flagSet.Var(&cfg.tlsClientCAFiles, "tls-client-ca", "Root CA `file` used to verify panel client certs")
	flagSet.BoolVar(&cfg.tlsUseSystemRoots, "tls-use-system-roots", false, "Verify panel client certs with system root CAs")

	flagSet.StringVar(&cfg.resolvConf, "resolv-conf", "/etc/resolv.conf", "resolv.conf `file` to manage")
	flagSet.StringVar(&cfg.domain, "domain", "", "domain `name` written into the managed resolv.conf")
	flagSet.StringVar(&cfg.search, "search", "", "search `list` written into the managed resolv.conf")
	flagSet.StringVar(&cfg.darwinScript, "darwin-script", "/usr/local/sbin/dnstrustd-setdns.sh",
		"macOS mset/uninit helper `script`")

	flagSet.Var(&cfg.authorityAddrs, "authority", "Built-in TLS/443 authority `address`, repeatable")

	flagSet.StringVar(&cfg.httpProbeIP, "http-probe-ip", "", "Captive-portal addr-probe target `ip`")
	flagSet.StringVar(&cfg.httpProbeQName, "http-probe-qname", "", "Captive-portal addr-probe `qname`")
	flagSet.Var(&cfg.httpDescProbes, "http-desc-probe", "Captive-portal desc-probe `ip|url` pair, repeatable")

	flagSet.BoolVar(&cfg.checkUpdates, "check-updates", false, "Enable self-update availability checks")
	flagSet.DurationVar(&cfg.statusInterval, "i", 15*time.Minute, "Periodic Status Report `interval` (needs -v set)")

	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")

	flagSet.StringVar(&cfg.setuidName, "user", "", "setuid `username` to constrain process after start-up")
	flagSet.StringVar(&cfg.setgidName, "group", "", "setgid `groupname` to constrain process after start-up")
	flagSet.StringVar(&cfg.chrootDir, "chroot", "", "chroot `directory` to constrain process after start-up")

	return flagSet.Parse(args[1:])
}
