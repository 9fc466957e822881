package extip

import (
	"context"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/rs/zerolog"

	"dzlatency/internal/addrutil"
	"dzlatency/internal/execx"
)

const (
	httpTimeout = 5 * time.Second
	stunTimeout = 5 * time.Second
)

// Unknown is returned when no detection path produced a usable IPv4.
const Unknown = "unknown"

// Detector resolves the host's external IPv4 address: first via a
// plain-text lookup endpoint through curl, then via a STUN binding request.
// Detection is informational only, so Detect never fails.
type Detector struct {
	r           execx.Runner
	curlBin     string
	endpoint    string
	stunServers []string
	log         zerolog.Logger
}

func NewDetector(r execx.Runner, curlBin, endpoint string, stunServers []string, log zerolog.Logger) *Detector {
	return &Detector{r: r, curlBin: curlBin, endpoint: endpoint, stunServers: stunServers, log: log}
}

func (d *Detector) Detect(ctx context.Context) string {
	if ip := d.fromEndpoint(ctx); ip != "" {
		return ip
	}
	if ip := d.fromSTUN(ctx); ip != "" {
		return ip
	}
	return Unknown
}

func (d *Detector) fromEndpoint(ctx context.Context) string {
	bin, ok := d.r.Look(d.curlBin)
	if !ok {
		return ""
	}
	res, err := d.r.Run(ctx, httpTimeout, bin, "-sS", "--max-time", "3", d.endpoint)
	if err != nil || res.TimedOut || res.ExitCode != 0 {
		return ""
	}
	ip := strings.TrimSpace(res.Stdout)
	if !addrutil.ValidIPv4(ip) {
		return ""
	}
	return ip
}

func (d *Detector) fromSTUN(ctx context.Context) string {
	for _, server := range d.stunServers {
		ip, err := stunMappedIP(ctx, server, stunTimeout)
		if err != nil {
			d.log.Debug().Str("server", server).Err(err).Msg("stun lookup failed")
			continue
		}
		if addrutil.ValidIPv4(ip) {
			return ip
		}
	}
	return ""
}

func stunMappedIP(ctx context.Context, server string, timeout time.Duration) (string, error) {
	uriStr := strings.TrimSpace(server)
	if !strings.HasPrefix(uriStr, "stun:") {
		uriStr = "stun:" + uriStr
	}
	uri, err := stun.ParseURI(uriStr)
	if err != nil {
		return "", err
	}

	client, err := stun.DialURI(uri, &stun.DialConfig{})
	if err != nil {
		return "", err
	}
	defer client.Close()

	msg := stun.MustBuild(stun.TransactionID, stun.BindingRequest)
	result := make(chan stun.XORMappedAddress, 1)
	fail := make(chan error, 1)

	go func() {
		var addr stun.XORMappedAddress
		err := client.Do(msg, func(res stun.Event) {
			if res.Error != nil {
				fail <- res.Error
				return
			}
			if err := addr.GetFrom(res.Message); err != nil {
				fail <- err
				return
			}
			result <- addr
		})
		if err != nil {
			fail <- err
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case addr := <-result:
		return addr.IP.String(), nil
	case err := <-fail:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
