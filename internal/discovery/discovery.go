package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dzlatency/internal/addrutil"
	"dzlatency/internal/execx"
	"dzlatency/internal/tabletext"
)

// Network selects which gossip view the discovery CLI queries.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

func (n Network) gossipFlag() string {
	if n == Mainnet {
		return "-um"
	}
	return "-ut"
}

// Peer is one discovered network participant. Identity is an opaque label.
type Peer struct {
	Addr     string
	Identity string
}

const (
	cmdTimeout = 30 * time.Second

	// Column index of the client address in `doublezero user list` rows.
	userListAddrField = 6
)

// Client fetches peer and membership listings from the two CLIs.
type Client struct {
	r         execx.Runner
	tunnelBin string
	gossipBin string
}

func NewClient(r execx.Runner, tunnelBin, gossipBin string) *Client {
	return &Client{r: r, tunnelBin: tunnelBin, gossipBin: gossipBin}
}

// ClientAddrs returns the set of IPv4 addresses in the local tunnel
// membership list (`doublezero user list`).
func (c *Client) ClientAddrs(ctx context.Context) (map[string]struct{}, error) {
	res, err := c.r.Run(ctx, cmdTimeout, c.tunnelBin, "user", "list")
	if err != nil {
		return nil, fmt.Errorf("user list: %w", err)
	}
	if res.TimedOut {
		return nil, fmt.Errorf("user list: timed out")
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("user list: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	addrs := make(map[string]struct{})
	for _, line := range strings.Split(res.Stdout, "\n") {
		fields := tabletext.SplitFields(line)
		if len(fields) <= userListAddrField {
			continue
		}
		if addr := fields[userListAddrField]; addrutil.ValidIPv4(addr) {
			addrs[addr] = struct{}{}
		}
	}
	return addrs, nil
}

// Peers returns (address, identity) pairs from the gossip table of the
// selected network, in the order the tool printed them.
func (c *Client) Peers(ctx context.Context, network Network) ([]Peer, error) {
	res, err := c.r.Run(ctx, cmdTimeout, c.gossipBin, "gossip", network.gossipFlag())
	if err != nil {
		return nil, fmt.Errorf("gossip: %w", err)
	}
	if res.TimedOut {
		return nil, fmt.Errorf("gossip: timed out")
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("gossip: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var peers []Peer
	for _, line := range strings.Split(res.Stdout, "\n") {
		if !strings.Contains(line, "|") || strings.HasPrefix(line, "-") {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "IP Address") {
			continue
		}
		fields := tabletext.SplitFields(line)
		if len(fields) < 2 || !addrutil.ValidIPv4(fields[0]) {
			continue
		}
		peers = append(peers, Peer{Addr: fields[0], Identity: fields[1]})
	}
	return peers, nil
}

// Match keeps the peers whose address is in the local membership set,
// preserving discovery order. Only matched peers are ever probed.
func Match(peers []Peer, addrs map[string]struct{}) []Peer {
	var matched []Peer
	for _, p := range peers {
		if _, ok := addrs[p.Addr]; ok {
			matched = append(matched, p)
		}
	}
	return matched
}
