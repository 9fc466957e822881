package tunnel

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dzlatency/internal/execx"
)

const upStatusTable = `
 Tunnel name | Tunnel status | Tunnel src      | Tunnel dst
-------------+---------------+-----------------+------------
 doublezero0 | up            | 203.0.113.10    | 198.51.100.7
`

// scriptRunner replays one canned result per Run call and records commands.
type scriptRunner struct {
	results []execx.Result
	errs    []error
	cmds    []string
	calls   int
}

func (s *scriptRunner) Run(_ context.Context, _ time.Duration, name string, args ...string) (execx.Result, error) {
	s.cmds = append(s.cmds, name+" "+strings.Join(args, " "))
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

func (s *scriptRunner) Look(name string) (string, bool) { return name, true }

var _ execx.Runner = (*scriptRunner)(nil)

func TestStatus_Up(t *testing.T) {
	t.Parallel()

	sr := &scriptRunner{results: []execx.Result{{Stdout: upStatusTable}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	st := c.Status(context.Background())
	if st.Status != StateUp || !st.IsUp {
		t.Fatalf("st=%+v", st)
	}
	if sr.cmds[0] != "doublezero status" {
		t.Fatalf("cmd=%q", sr.cmds[0])
	}
}

func TestStatus_NoHeaderIsUnknown(t *testing.T) {
	t.Parallel()

	sr := &scriptRunner{results: []execx.Result{{Stdout: "doublezero: no active session\n"}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	st := c.Status(context.Background())
	if st.Status != StateUnknown || st.IsUp {
		t.Fatalf("st=%+v", st)
	}
}

func TestStatus_ProcessFailureIsUnknown(t *testing.T) {
	t.Parallel()

	sr := &scriptRunner{
		results: []execx.Result{{}},
		errs:    []error{errors.New("exec: not found")},
	}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	if st := c.Status(context.Background()); st.Status != StateUnknown || st.IsUp {
		t.Fatalf("st=%+v", st)
	}
}

func TestConnect_UsesProfile(t *testing.T) {
	t.Parallel()

	sr := &scriptRunner{results: []execx.Result{{}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	c.Connect(context.Background())
	c.Disconnect(context.Background())
	if sr.cmds[0] != "doublezero connect ibrl" {
		t.Fatalf("cmd=%q", sr.cmds[0])
	}
	if sr.cmds[1] != "doublezero disconnect" {
		t.Fatalf("cmd=%q", sr.cmds[1])
	}
}

func TestWaitFor_SucceedsOnceTargetAppears(t *testing.T) {
	t.Parallel()

	down := execx.Result{Stdout: strings.Replace(upStatusTable, "up  ", "disconnected", 1)}
	sr := &scriptRunner{results: []execx.Result{down, down, {Stdout: upStatusTable}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	ok := c.WaitFor(context.Background(), StateUp, time.Second, time.Millisecond)
	if !ok {
		t.Fatalf("expected success")
	}
	if sr.calls != 3 {
		t.Fatalf("calls=%d", sr.calls)
	}
}

func TestWaitFor_TimesOut(t *testing.T) {
	t.Parallel()

	sr := &scriptRunner{results: []execx.Result{{Stdout: "garbage"}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	if c.WaitFor(context.Background(), StateUp, 10*time.Millisecond, time.Millisecond) {
		t.Fatalf("expected timeout")
	}
}

func TestWaitFor_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sr := &scriptRunner{results: []execx.Result{{Stdout: "garbage"}}}
	c := NewController(sr, "doublezero", "ibrl", zerolog.Nop())

	if c.WaitFor(ctx, StateUp, time.Second, time.Millisecond) {
		t.Fatalf("expected failure on cancelled context")
	}
}
