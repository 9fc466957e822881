package survey

import (
	"context"

	"golang.org/x/sync/errgroup"

	"dzlatency/internal/discovery"
	"dzlatency/internal/probe"
)

// Entry is one peer's measurement under a single tunnel state.
type Entry struct {
	Identity string
	Result   probe.Result
}

// Survey maps a peer address to its measurement. One Survey corresponds to
// one full probing pass under one tunnel state, and is never mutated after
// Run returns.
type Survey map[string]Entry

// Pinger is the probe dependency; satisfied by *probe.Prober.
type Pinger interface {
	Ping(ctx context.Context, addr string) probe.Result
}

// Run probes every matched peer concurrently, at most limit probes in
// flight. Probes are independent and idempotent; each goroutine writes its
// own slot, so the fan-out needs no locking. Ordering among probes is
// unspecified since results are keyed by address.
func Run(ctx context.Context, peers []discovery.Peer, p Pinger, limit int) Survey {
	results := make([]probe.Result, len(peers))

	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, peer := range peers {
		i, peer := i, peer
		g.Go(func() error {
			results[i] = p.Ping(ctx, peer.Addr)
			return nil
		})
	}
	_ = g.Wait()

	svy := make(Survey, len(peers))
	for i, peer := range peers {
		svy[peer.Addr] = Entry{Identity: peer.Identity, Result: results[i]}
	}
	return svy
}
