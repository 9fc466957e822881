package probe

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"dzlatency/internal/execx"
)

// fakeRunner returns a canned result for every Run call.
type fakeRunner struct {
	res     execx.Result
	err     error
	missing bool
	ran     bool
}

func (f *fakeRunner) Run(_ context.Context, _ time.Duration, _ string, _ ...string) (execx.Result, error) {
	f.ran = true
	return f.res, f.err
}

func (f *fakeRunner) Look(name string) (string, bool) {
	if f.missing {
		return "", false
	}
	return "/usr/bin/" + name, true
}

var _ execx.Runner = (*fakeRunner)(nil)

const linuxPingOut = `PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.
64 bytes from 10.0.0.1: icmp_seq=1 ttl=57 time=12.1 ms
64 bytes from 10.0.0.1: icmp_seq=2 ttl=57 time=12.9 ms

--- 10.0.0.1 ping statistics ---
2 packets transmitted, 2 received, 0% packet loss, time 1001ms
rtt min/avg/max/mdev = 12.100/12.500/12.900/0.400 ms
`

const bsdPingOut = `PING 10.0.0.1 (10.0.0.1): 56 data bytes
64 bytes from 10.0.0.1: icmp_seq=0 ttl=57 time=9.831 ms

--- 10.0.0.1 ping statistics ---
2 packets transmitted, 2 packets received, 0.0% packet loss
round-trip min/avg/max = 9.831/10.250/10.669 ms
`

func TestParseAvgMS_LinuxSummary(t *testing.T) {
	t.Parallel()

	avg, ok := ParseAvgMS(linuxPingOut)
	if !ok || math.Abs(avg-12.5) > 1e-9 {
		t.Fatalf("avg=%v ok=%v", avg, ok)
	}
}

func TestParseAvgMS_BSDSummary(t *testing.T) {
	t.Parallel()

	avg, ok := ParseAvgMS(bsdPingOut)
	if !ok || math.Abs(avg-10.25) > 1e-9 {
		t.Fatalf("avg=%v ok=%v", avg, ok)
	}
}

func TestParseAvgMS_PerEchoFallback(t *testing.T) {
	t.Parallel()

	out := "64 bytes: time=10.0 ms\n64 bytes: time<1 ms\n"
	avg, ok := ParseAvgMS(out)
	if !ok || math.Abs(avg-5.5) > 1e-9 {
		t.Fatalf("avg=%v ok=%v", avg, ok)
	}
}

func TestParseAvgMS_NoEvidence(t *testing.T) {
	t.Parallel()

	if _, ok := ParseAvgMS("ping: sendmsg: Operation not permitted\n"); ok {
		t.Fatalf("expected no average")
	}
}

func TestPing_Latency(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{Stdout: linuxPingOut}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Latency || math.Abs(got.AvgMS-12.5) > 1e-9 {
		t.Fatalf("got %+v", got)
	}
	if got.String() != "12.50 ms" {
		t.Fatalf("render=%q", got.String())
	}
}

func TestPing_Unreachable(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{
		Stdout:   "From 10.0.0.254 icmp_seq=1 Destination Host Unreachable\n",
		ExitCode: 1,
	}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Unreachable {
		t.Fatalf("got %+v", got)
	}
}

func TestPing_PermissionDeniedIsBlocked(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{
		Stderr:   "ping: socket: Permission denied\n",
		ExitCode: 2,
	}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Blocked {
		t.Fatalf("got %+v", got)
	}
}

func TestPing_NonZeroExitWithoutMarkersIsTimeout(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{
		Stdout:   "2 packets transmitted, 0 received, 100% packet loss\n",
		ExitCode: 1,
	}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Timeout {
		t.Fatalf("got %+v", got)
	}
}

func TestPing_ZeroExitWithoutEvidenceIsBlocked(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{Stdout: "no summary here\n"}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Blocked {
		t.Fatalf("got %+v", got)
	}
}

func TestPing_ProcessTimeout(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{res: execx.Result{TimedOut: true, ExitCode: -1}}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != Timeout {
		t.Fatalf("got %+v", got)
	}
}

func TestPing_ToolMissingSkipsSpawn(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{missing: true}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != ToolMissing {
		t.Fatalf("got %+v", got)
	}
	if fr.ran {
		t.Fatalf("prober must not spawn when the tool is missing")
	}
	if got.String() != "ping not found" {
		t.Fatalf("render=%q", got.String())
	}
}

func TestPing_SpawnFailure(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{err: errors.New("fork/exec: no such file")}
	got := New(fr, "ping", 2, time.Second).Ping(context.Background(), "10.0.0.1")
	if got.Kind != ToolMissing {
		t.Fatalf("got %+v", got)
	}
}
