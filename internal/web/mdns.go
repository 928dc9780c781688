package web

import (
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/golang/glog"
	"github.com/grandcat/zeroconf"
)

const (
	mdnsService = "_http._tcp"
	mdnsDomain  = "local."
)

// Advertisement is a running mDNS registration of the status page.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise announces the status page listening on addr under the given
// instance name. txt entries are published as key=value records.
func Advertise(instance, addr string, txt map[string]string) (*Advertisement, error) {
	port, err := portOf(addr)
	if err != nil {
		return nil, err
	}
	server, err := zeroconf.Register(instance, mdnsService, mdnsDomain, port, txtRecords(txt), nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	glog.Infof("mdns: advertising %q on port %d", instance, port)
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertisement) Shutdown() {
	a.server.Shutdown()
}

// portOf extracts the TCP port from a listen address such as ":8080".
func portOf(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("mdns: %w", err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("mdns: invalid port %q in %q", p, addr)
	}
	return port, nil
}

func txtRecords(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
