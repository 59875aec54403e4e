package http

import (
	"fmt"
	"net"
	"strings"
)

// TrustedProxies lists the peers allowed to report the client address and
// scheme through X-Forwarded-* headers. A nil value trusts no one.
type TrustedProxies struct {
	all  bool
	nets []*net.IPNet
}

// ParseTrustedProxies accepts IP addresses, CIDR ranges or "*"
func ParseTrustedProxies(entries []string) (*TrustedProxies, error) {
	p := &TrustedProxies{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
			continue
		case entry == "*":
			p.all = true
			continue
		case !strings.Contains(entry, "/"):
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an IP address", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		default:
			_, ipnet, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			p.nets = append(p.nets, ipnet)
		}
	}
	return p, nil
}

// Trusts reports whether addr belongs to a trusted proxy
func (p *TrustedProxies) Trusts(addr string) bool {
	if p == nil {
		return false
	}
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	if p.all {
		return true
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
