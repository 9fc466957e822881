package compare

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"dzlatency/internal/survey"
)

// Row is a peer measured numerically under both tunnel states.
type Row struct {
	Addr     string
	Identity string
	ConnMS   float64
	DiscMS   float64
	Delta    float64 // ConnMS - DiscMS
	Pct      float64 // Delta / DiscMS * 100, 0 when DiscMS == 0
}

// SkippedRow is a peer missing a numeric result on at least one side.
// Raw values are kept verbatim for display.
type SkippedRow struct {
	Addr         string
	Identity     string
	Connected    string
	Disconnected string
}

// Report partitions every peer in the union of two surveys into exactly one
// of Better, Same, Worse, or Skipped.
type Report struct {
	Better  []Row
	Same    []Row
	Worse   []Row
	Skipped []SkippedRow

	OnlyConnected    int
	OnlyDisconnected int
	BothNonNumeric   int
}

// Total is the number of peers seen in either survey.
func (r Report) Total() int {
	return len(r.Better) + len(r.Same) + len(r.Worse) + len(r.Skipped)
}

var msPattern = regexp.MustCompile(`^(?i)(\d+(?:\.\d+)?)\s*ms$`)

// ParseMS parses a strict "<number> ms" latency string, case-insensitive.
func ParseMS(s string) (float64, bool) {
	m := msPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Build compares two surveys. Inputs are not mutated, and the output is
// fully determined by them: rebuilding from the same surveys yields the
// same partitions in the same order.
func Build(conn, disc survey.Survey) Report {
	addrs := make([]string, 0, len(conn)+len(disc))
	seen := make(map[string]struct{}, len(conn)+len(disc))
	for addr := range conn {
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	for addr := range disc {
		if _, ok := seen[addr]; !ok {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)

	var rep Report
	for _, addr := range addrs {
		connEntry, connSeen := conn[addr]
		discEntry, discSeen := disc[addr]

		identity := connEntry.Identity
		if identity == "" {
			identity = discEntry.Identity
		}

		var connRaw, discRaw string
		if connSeen {
			connRaw = connEntry.Result.String()
		}
		if discSeen {
			discRaw = discEntry.Result.String()
		}
		connMS, connOK := ParseMS(connRaw)
		discMS, discOK := ParseMS(discRaw)

		if !connOK || !discOK {
			switch {
			case connOK:
				rep.OnlyConnected++
			case discOK:
				rep.OnlyDisconnected++
			default:
				rep.BothNonNumeric++
			}
			rep.Skipped = append(rep.Skipped, SkippedRow{
				Addr:         addr,
				Identity:     identity,
				Connected:    orNA(connRaw),
				Disconnected: orNA(discRaw),
			})
			continue
		}

		delta := connMS - discMS
		pct := 0.0
		if discMS > 0 {
			pct = delta / discMS * 100
		}
		row := Row{Addr: addr, Identity: identity, ConnMS: connMS, DiscMS: discMS, Delta: delta, Pct: pct}
		switch {
		case delta < 0:
			rep.Better = append(rep.Better, row)
		case delta > 0:
			rep.Worse = append(rep.Worse, row)
		default:
			rep.Same = append(rep.Same, row)
		}
	}

	sort.SliceStable(rep.Better, func(i, j int) bool { return rep.Better[i].Delta < rep.Better[j].Delta })
	sort.SliceStable(rep.Worse, func(i, j int) bool { return rep.Worse[i].Delta > rep.Worse[j].Delta })
	sort.SliceStable(rep.Same, func(i, j int) bool {
		if rep.Same[i].ConnMS != rep.Same[j].ConnMS {
			return rep.Same[i].ConnMS < rep.Same[j].ConnMS
		}
		return rep.Same[i].Addr < rep.Same[j].Addr
	})
	return rep
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Render writes the comparison summary and its sorted tables.
func Render(w io.Writer, rep Report) {
	fmt.Fprintf(w, "\n=== Latency comparison summary ===\n")
	fmt.Fprintf(w, "Total peers: %d\n", rep.Total())
	fmt.Fprintf(w, "Better (connected < disconnected): %d\n", len(rep.Better))
	fmt.Fprintf(w, "Same   (equal values)            : %d\n", len(rep.Same))
	fmt.Fprintf(w, "Worse  (connected > disconnected): %d\n", len(rep.Worse))
	fmt.Fprintf(w, "Skipped (non-numeric, ICMP blocked/timeout): %d "+
		"[only connected measured: %d; only disconnected measured: %d; both: %d]\n",
		len(rep.Skipped), rep.OnlyConnected, rep.OnlyDisconnected, rep.BothNonNumeric)

	renderBlock(w, "improvements (connected faster):", rep.Better)
	renderBlock(w, "same (exactly equal):", rep.Same)
	renderBlock(w, "regressions (connected slower):", rep.Worse)

	if len(rep.Skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped peers (could not measure with ICMP):\n")
	fmt.Fprintf(w, "%-16s%-20s%-20s%s\n", "ip_address", "lat_conn", "lat_disc", "identity")
	for _, r := range rep.Skipped {
		fmt.Fprintf(w, "%-16s%-20s%-20s%s\n", r.Addr, r.Connected, r.Disconnected, truncate(r.Identity, 40))
	}
}

func renderBlock(w io.Writer, title string, rows []Row) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(rows) == 0 {
		fmt.Fprintln(w, "(no entries)")
		return
	}
	fmt.Fprintf(w, "%-16s%10s%10s%10s%8s  %s\n", "ip_address", "conn_ms", "disc_ms", "delta_ms", "pct", "identity")
	for _, r := range rows {
		fmt.Fprintf(w, "%-16s%10.2f%10.2f%+10.2f%+8.2f  %s\n",
			r.Addr, r.ConnMS, r.DiscMS, r.Delta, r.Pct, truncate(r.Identity, 40))
	}
}

// RenderSingle writes a flat table of one survey, sorted by address. Used
// when only a single tunnel state was measured.
func RenderSingle(w io.Writer, label string, svy survey.Survey) {
	fmt.Fprintf(w, "\nOnly '%s' measurements were taken (--no-toggle)\n", label)
	fmt.Fprintf(w, "%-16s  %-44s  %s\n", "ip_address", "identity", "latency")

	addrs := make([]string, 0, len(svy))
	for addr := range svy {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		e := svy[addr]
		fmt.Fprintf(w, "%-16s  %-44s  %s\n", addr, truncate(e.Identity, 44), e.Result.String())
	}
}
