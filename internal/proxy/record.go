// Package proxy maintains a bounded, ranked pool of free proxies: it fetches
// candidates from public sources, validates them concurrently, and serves
// weighted-random picks to the fetch layer.
package proxy

import (
	"fmt"
	"time"
)

// Record describes one proxy and its validation history.
type Record struct {
	Address        string    `json:"address"`
	Port           int       `json:"port"`
	Protocol       string    `json:"protocol"`
	Country        string    `json:"country,omitempty"`
	Anonymity      string    `json:"anonymity,omitempty"`
	LatencySeconds float64   `json:"latency_seconds"`
	LastChecked    time.Time `json:"last_checked"`
	IsWorking      bool      `json:"is_working"`
	SuccessCount   int       `json:"success_count"`
	FailCount      int       `json:"fail_count"`
}

// Key identifies a proxy across sources and refreshes.
func (r Record) Key() string {
	return fmt.Sprintf("%s:%d", r.Address, r.Port)
}

// ServerURL renders the proxy in the form browsers and transports accept.
func (r Record) ServerURL() string {
	protocol := r.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, r.Address, r.Port)
}
