package core

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminNetworks restricts which client addresses may reach the admin API.
// Deny entries win over allow entries; an empty allow list admits everyone
// not denied. A nil *AdminNetworks admits everyone.
type AdminNetworks struct {
	allow []*net.IPNet
	deny  []*net.IPNet
}

// NewAdminNetworks parses comma separated lists of CIDRs or bare IPs. It
// returns nil when both lists are empty.
func NewAdminNetworks(allowList, denyList string) (*AdminNetworks, error) {
	allow, err := parseNetworks(allowList)
	if err != nil {
		return nil, fmt.Errorf("invalid admin allow list: %w", err)
	}
	deny, err := parseNetworks(denyList)
	if err != nil {
		return nil, fmt.Errorf("invalid admin deny list: %w", err)
	}
	if len(allow) == 0 && len(deny) == 0 {
		return nil, nil
	}
	return &AdminNetworks{allow: allow, deny: deny}, nil
}

func (a *AdminNetworks) Allows(ip net.IP) bool {
	if a == nil {
		return true
	}
	if ip == nil {
		return false
	}
	for _, n := range a.deny {
		if n.Contains(ip) {
			return false
		}
	}
	if len(a.allow) == 0 {
		return true
	}
	for _, n := range a.allow {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware rejects requests from clients outside the admitted networks
// with 403.
func (a *AdminNetworks) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Allows(net.ParseIP(c.ClientIP())) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "FORBIDDEN",
				"message": "client address not allowed",
				"data":    gin.H{"client_ip": c.ClientIP()},
			})
			return
		}
		c.Next()
	}
}

func parseNetworks(list string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		n, err := parseNetwork(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseNetwork(value string) (*net.IPNet, error) {
	if strings.Contains(value, "/") {
		_, n, err := net.ParseCIDR(value)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q", value)
		}
		return n, nil
	}

	ip := net.ParseIP(value)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP %q", value)
	}
	if ip4 := ip.To4(); ip4 != nil {
		return &net.IPNet{IP: ip4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}
