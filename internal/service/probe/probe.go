// Package probe checks TCP reachability of hosts.
package probe

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds each connect attempt.
const DefaultTimeout = 5 * time.Second

// Result describes the first port that accepted a connection.
type Result struct {
	Reachable bool
	Port      int
	LatencyMs *int64
	Err       error
}

// Prober dials candidate ports in order and stops at the first success.
type Prober struct {
	Timeout time.Duration
	dial    func(ctx context.Context, network, address string) (net.Conn, error)
}

// New constructs a Prober with the given per-port timeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &net.Dialer{}
	return &Prober{Timeout: timeout, dial: d.DialContext}
}

// ServerPorts returns the ports probed for a server: its SSH port, then 80
// and 443, without duplicates or non-positive values.
func ServerPorts(sshPort int) []int {
	out := make([]int, 0, 3)
	for _, p := range []int{sshPort, 80, 443} {
		if p <= 0 || p > 65535 {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == p {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// IsReachable reports whether any of ports on host accepts a TCP connection.
// Transport failures never surface as errors to the caller; the last one is
// kept on Result for logging.
func (p *Prober) IsReachable(ctx context.Context, host string, ports []int) Result {
	host = strings.TrimSpace(host)
	if host == "" || len(ports) == 0 {
		return Result{}
	}
	var last error
	for _, port := range ports {
		if ctx.Err() != nil {
			return Result{Err: ctx.Err()}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		started := time.Now()
		conn, err := p.dial(attemptCtx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		cancel()
		if err != nil {
			last = err
			continue
		}
		latency := time.Since(started).Milliseconds()
		_ = conn.Close()
		return Result{Reachable: true, Port: port, LatencyMs: &latency}
	}
	return Result{Err: last}
}
