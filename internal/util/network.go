package util

import (
	"fmt"
	"net"
	"strings"
)

// ParseTrustedCIDRs parses the configured proxy CIDR list. Blank entries are
// skipped so comma-split env values with stray whitespace still work.
func ParseTrustedCIDRs(cidrStrings []string) ([]*net.IPNet, error) {
	var cidrs []*net.IPNet
	for _, raw := range cidrStrings {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", raw, err)
		}
		cidrs = append(cidrs, network)
	}
	return cidrs, nil
}

func isIPInTrustedCIDRs(ip net.IP, trustedCIDRs []*net.IPNet) bool {
	for _, cidr := range trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
