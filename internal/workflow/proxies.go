package workflow

import (
	"context"
	"sync"

	"newsharvest/internal/proxy"
)

// ProxyProvider supplies the proxy server URL for one browser attempt. An
// empty string means the attempt runs without a proxy.
type ProxyProvider interface {
	Next(ctx context.Context) string
}

type noProxy struct{}

// NoProxy is the provider for direct, proxy-less runs.
func NoProxy() ProxyProvider { return noProxy{} }

func (noProxy) Next(context.Context) string { return "" }

type staticProxy struct {
	server string
}

// StaticProxy always returns the one configured server.
func StaticProxy(server string) ProxyProvider {
	return staticProxy{server: server}
}

func (p staticProxy) Next(context.Context) string { return p.server }

type listProxy struct {
	mu      sync.Mutex
	servers []string
	next    int
}

// ListProxy rotates round-robin through a fixed server list.
func ListProxy(servers []string) ProxyProvider {
	return &listProxy{servers: servers}
}

func (p *listProxy) Next(context.Context) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.servers) == 0 {
		return ""
	}
	server := p.servers[p.next%len(p.servers)]
	p.next++
	return server
}

type poolProxy struct {
	pool *proxy.Pool
}

// PoolProxy draws weighted-random picks from the free-proxy pool, refreshing
// it first when the cooldown has lapsed. An empty pool degrades to direct
// fetches rather than blocking the run.
func PoolProxy(pool *proxy.Pool) ProxyProvider {
	return poolProxy{pool: pool}
}

func (p poolProxy) Next(ctx context.Context) string {
	p.pool.Refresh(ctx, false)
	rec, ok := p.pool.Select()
	if !ok {
		return ""
	}
	return rec.ServerURL()
}
