package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"dzlatency/internal/compare"
	"dzlatency/internal/config"
	"dzlatency/internal/discovery"
	"dzlatency/internal/execx"
	"dzlatency/internal/extip"
	"dzlatency/internal/logging"
	"dzlatency/internal/probe"
	"dzlatency/internal/survey"
	"dzlatency/internal/tunnel"
)

const usage = `dzlatency - compare peer latency with the tunnel connected vs disconnected

Usage:
  dzlatency --mainnet | --testnet [--no-toggle] [--config <path>] [--yes]

Flags:
  --mainnet    query the mainnet gossip view
  --testnet    query the testnet gossip view
  --no-toggle  measure only the current tunnel state, skip connect/disconnect
  --config     path to a YAML tunables file
  --yes        skip the interactive confirmation before toggling
`

func main() {
	fs := flag.NewFlagSet("dzlatency", flag.ExitOnError)
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	mainnet := fs.Bool("mainnet", false, "use the mainnet gossip view")
	testnet := fs.Bool("testnet", false, "use the testnet gossip view")
	noToggle := fs.Bool("no-toggle", false, "measure only the current tunnel state")
	configPath := fs.String("config", "", "path to YAML config")
	assumeYes := fs.Bool("yes", false, "skip the confirmation prompt")
	_ = fs.Parse(os.Args[1:])

	if *mainnet == *testnet {
		fmt.Fprint(os.Stderr, "exactly one of --mainnet or --testnet is required\n\n")
		fs.Usage()
		os.Exit(2)
	}
	network := discovery.Testnet
	if *mainnet {
		network = discovery.Mainnet
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}

	log := logging.New(cfg.Logging)
	runner := execx.OSRunner{}

	if missing := missingTools(runner, cfg); len(missing) > 0 {
		fmt.Fprintln(os.Stderr, "ERROR: Missing required tools:")
		for _, m := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", m)
		}
		os.Exit(1)
	}

	toggle := !*noToggle
	if toggle && !*assumeYes {
		if !confirmToggle(os.Stdin, os.Stdout) {
			fmt.Fprintln(os.Stdout, "Aborting on user request.")
			return
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a := &app{
		cfg:    cfg,
		log:    log,
		out:    os.Stdout,
		disc:   discovery.NewClient(runner, cfg.TunnelBin, cfg.GossipBin),
		tun:    tunnel.NewController(runner, cfg.TunnelBin, cfg.ConnectProfile, log),
		pinger: probe.New(runner, cfg.PingBin, cfg.ProbeCount, cfg.ProbeTimeout()),
		ip:     extip.NewDetector(runner, cfg.CurlBin, cfg.IPEndpoint, cfg.STUNServers, log),
	}
	a.run(ctx, network, toggle)
}

type app struct {
	cfg    config.Config
	log    zerolog.Logger
	out    io.Writer
	disc   *discovery.Client
	tun    *tunnel.Controller
	pinger *probe.Prober
	ip     *extip.Detector
}

// run measures the current tunnel state first, then (when toggling) flips
// the tunnel, measures the other state, and restores the initial state.
// A failed state confirmation skips that state's measurements but never the
// restore attempt.
func (a *app) run(ctx context.Context, network discovery.Network, toggle bool) {
	externalIP := a.ip.Detect(ctx)
	initial := a.tun.Status(ctx)
	fmt.Fprintf(a.out, "External IP: %s\n", externalIP)
	fmt.Fprintf(a.out, "Tunnel status: %s (is_up=%t)\n", initial.Status, initial.IsUp)

	var connData, discData survey.Survey
	if initial.IsUp {
		connData = a.measure(ctx, network, "connected")
		if toggle {
			a.log.Info().Msg("disconnecting tunnel")
			a.tun.Disconnect(ctx)
			if a.tun.WaitFor(ctx, tunnel.StateDisconnected, a.cfg.WaitTimeout(), a.cfg.PollInterval()) {
				discData = a.measure(ctx, network, "disconnected")
			} else {
				a.log.Warn().Msg("could not confirm the tunnel is disconnected; skipping disconnected measurements")
			}
			a.log.Info().Msg("reconnecting tunnel")
			a.tun.Connect(ctx)
			if !a.tun.WaitFor(ctx, tunnel.StateUp, a.cfg.WaitTimeout(), a.cfg.PollInterval()) {
				a.log.Warn().Msg("could not confirm the tunnel is back up; check manually")
			}
		}
	} else {
		discData = a.measure(ctx, network, "disconnected")
		if toggle {
			a.log.Info().Msg("connecting tunnel")
			a.tun.Connect(ctx)
			if a.tun.WaitFor(ctx, tunnel.StateUp, a.cfg.WaitTimeout(), a.cfg.PollInterval()) {
				connData = a.measure(ctx, network, "connected")
			} else {
				a.log.Warn().Msg("could not confirm the tunnel is up; skipping connected measurements")
			}
			a.log.Info().Msg("restoring disconnected state")
			a.tun.Disconnect(ctx)
			if !a.tun.WaitFor(ctx, tunnel.StateDisconnected, a.cfg.WaitTimeout(), a.cfg.PollInterval()) {
				a.log.Warn().Msg("could not confirm the tunnel is disconnected again; check manually")
			}
		}
	}

	switch {
	case len(connData) > 0 && len(discData) > 0:
		compare.Render(a.out, compare.Build(connData, discData))
	case len(connData) > 0:
		compare.RenderSingle(a.out, "connected", connData)
	case len(discData) > 0:
		compare.RenderSingle(a.out, "disconnected", discData)
	default:
		fmt.Fprintln(a.out, "\nNo measurements completed.")
	}
}

// measure is one full survey pass under the current tunnel state. Discovery
// failures degrade to an empty survey with a warning; they are not fatal.
func (a *app) measure(ctx context.Context, network discovery.Network, label string) survey.Survey {
	addrs, err := a.disc.ClientAddrs(ctx)
	if err != nil {
		a.log.Warn().Str("state", label).Err(err).Msg("membership listing failed")
		return survey.Survey{}
	}
	peers, err := a.disc.Peers(ctx, network)
	if err != nil {
		a.log.Warn().Str("state", label).Err(err).Msg("gossip listing failed")
		return survey.Survey{}
	}
	matched := discovery.Match(peers, addrs)
	a.log.Info().
		Str("state", label).
		Int("members", len(addrs)).
		Int("gossip_peers", len(peers)).
		Int("matched", len(matched)).
		Msg("probing matched peers")
	return survey.Run(ctx, matched, a.pinger, a.cfg.MaxWorkers)
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func missingTools(r execx.Runner, cfg config.Config) []string {
	checks := []struct{ bin, purpose string }{
		{cfg.GossipBin, "gossip CLI"},
		{cfg.TunnelBin, "tunnel CLI"},
		{cfg.PingBin, "system ping tool"},
		{cfg.CurlBin, "external IP detection"},
	}
	var missing []string
	for _, c := range checks {
		if _, ok := r.Look(c.bin); !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", c.bin, c.purpose))
		}
	}
	return missing
}

func confirmToggle(in io.Reader, out io.Writer) bool {
	fmt.Fprintln(out, "\nWARNING: this run will disconnect and reconnect your tunnel to measure")
	fmt.Fprintln(out, "latency in both states. Traffic over the tunnel may be interrupted.")
	fmt.Fprint(out, "Do you want to continue? [y/N]: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()
	return ctx, cancel
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
