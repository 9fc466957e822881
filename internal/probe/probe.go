package probe

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dzlatency/internal/execx"
)

// Kind classifies one probing pass against a single address.
type Kind int

const (
	// Latency means an average round-trip time was measured.
	Latency Kind = iota
	// Unreachable means the tool reported the destination unreachable.
	Unreachable
	// Blocked means ICMP looked filtered (permission/protocol errors), or
	// the tool produced no usable evidence at all.
	Blocked
	// Timeout means the probe process exceeded its deadline or exited
	// non-zero without any more specific marker.
	Timeout
	// ToolMissing means the probe binary is not installed.
	ToolMissing
)

// Result is the immutable outcome of probing one address.
type Result struct {
	Kind  Kind
	AvgMS float64
}

// String renders the result in the wire form the comparison step parses:
// numeric results are "<avg> ms" with two decimals, everything else is a
// fixed non-numeric label.
func (r Result) String() string {
	switch r.Kind {
	case Latency:
		return fmt.Sprintf("%.2f ms", r.AvgMS)
	case Unreachable:
		return "unreachable"
	case Blocked:
		return "icmp blocked"
	case Timeout:
		return "timeout"
	case ToolMissing:
		return "ping not found"
	}
	return "unknown"
}

// ping summary wording differs between iputils, BSD ping, and locales.
// Match the two common summary lines, then fall back to averaging the
// per-echo "time=" values.
var (
	rttSummary       = regexp.MustCompile(`rtt .* = [\d.]+/([\d.]+)/[\d.]+/[\d.]+ ms`)
	roundTripSummary = regexp.MustCompile(`round-trip .* = [\d.]+/([\d.]+)/[\d.]+ ms`)
	echoTime         = regexp.MustCompile(`time[=<]([\d.]+)\s*ms`)
)

// ParseAvgMS extracts an average round-trip time in milliseconds from raw
// ping output. ok is false when no numeric evidence is present.
func ParseAvgMS(out string) (float64, bool) {
	if m := rttSummary.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	if m := roundTripSummary.FindStringSubmatch(out); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}
	matches := echoTime.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(matches)), true
}

// Prober issues echo probes via the system ping binary.
type Prober struct {
	r       execx.Runner
	bin     string
	count   int
	perEcho time.Duration
}

func New(r execx.Runner, bin string, count int, perEcho time.Duration) *Prober {
	if count <= 0 {
		count = 1
	}
	if perEcho <= 0 {
		perEcho = time.Second
	}
	return &Prober{r: r, bin: bin, count: count, perEcho: perEcho}
}

// Ping probes one IPv4 address and classifies the outcome. It never returns
// an error: everything the tool can do maps onto a Result kind.
func (p *Prober) Ping(ctx context.Context, addr string) Result {
	bin, ok := p.r.Look(p.bin)
	if !ok {
		return Result{Kind: ToolMissing}
	}

	perEchoSec := int(p.perEcho / time.Second)
	if perEchoSec < 1 {
		perEchoSec = 1
	}
	overall := time.Duration(p.count)*(p.perEcho+time.Second) + 2*time.Second

	res, err := p.r.Run(ctx, overall, bin,
		"-n", "-c", strconv.Itoa(p.count), "-W", strconv.Itoa(perEchoSec), addr)
	if err != nil {
		return Result{Kind: ToolMissing}
	}
	if res.TimedOut {
		return Result{Kind: Timeout}
	}

	if avg, ok := ParseAvgMS(res.Stdout); ok {
		return Result{Kind: Latency, AvgMS: avg}
	}

	combined := strings.ToLower(res.Stdout + res.Stderr)
	if strings.Contains(combined, "unreachable") {
		return Result{Kind: Unreachable}
	}
	if strings.Contains(combined, "permission denied") || strings.Contains(combined, "icmp") {
		return Result{Kind: Blocked}
	}
	if res.ExitCode != 0 {
		return Result{Kind: Timeout}
	}
	// Heuristic default: no latency evidence, no failure marker, zero exit.
	return Result{Kind: Blocked}
}
