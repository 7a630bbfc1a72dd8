package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Source yields proxy candidates from one upstream list. Implementations
// must be independent: one source failing never aborts the others.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Record, error)
}

// NewDefaultSources returns the stock public proxy-list sources. Pass a nil
// client to use a default with a 10s timeout.
func NewDefaultSources(client *http.Client) []Source {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return []Source{
		&FreeProxyListSource{Client: client, URL: "https://free-proxy-list.net/"},
		&ProxyScrapeSource{Client: client, URLs: map[string]string{
			"http":  "https://api.proxyscrape.com/v2/?request=get&protocol=http&timeout=10000&country=all&ssl=all&anonymity=all",
			"https": "https://api.proxyscrape.com/v2/?request=get&protocol=https&timeout=10000&country=all&ssl=all&anonymity=all",
		}},
		&GeonodeSource{Client: client, URL: "https://proxylist.geonode.com/api/proxy-list?limit=100&page=1&sort_by=lastChecked&sort_type=desc&protocols=http%2Chttps"},
		&ProxyNovaSource{Client: client, URL: "https://www.proxynova.com/proxy-server-list/"},
	}
}

func fetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// FreeProxyListSource scrapes the free-proxy-list.net HTML table.
type FreeProxyListSource struct {
	Client *http.Client
	URL    string
}

// Table columns: IP, Port, Code, Country, Anonymity, Google, Https.
var freeProxyListRow = regexp.MustCompile(
	`<tr><td>(\d+\.\d+\.\d+\.\d+)</td><td>(\d+)</td><td>([A-Z]{2})</td><td>([^<]*)</td><td>([^<]*)</td><td>([^<]*)</td><td>([^<]*)</td>`)

// Name implements Source.
func (s *FreeProxyListSource) Name() string { return "free-proxy-list" }

// Fetch implements Source.
func (s *FreeProxyListSource) Fetch(ctx context.Context) ([]Record, error) {
	body, err := fetchBody(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, m := range freeProxyListRow.FindAllStringSubmatch(string(body), -1) {
		port, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		protocol := "http"
		if strings.TrimSpace(m[7]) == "yes" {
			protocol = "https"
		}
		records = append(records, Record{
			Address:   m[1],
			Port:      port,
			Protocol:  protocol,
			Country:   m[3],
			Anonymity: strings.TrimSpace(m[5]),
		})
	}
	return records, nil
}

// ProxyScrapeSource reads the proxyscrape plain-text API, one ip:port per
// line, once per protocol.
type ProxyScrapeSource struct {
	Client *http.Client
	URLs   map[string]string
}

// Name implements Source.
func (s *ProxyScrapeSource) Name() string { return "proxyscrape" }

// Fetch implements Source.
func (s *ProxyScrapeSource) Fetch(ctx context.Context) ([]Record, error) {
	var (
		records []Record
		lastErr error
	)
	for protocol, url := range s.URLs {
		body, err := fetchBody(ctx, s.Client, url)
		if err != nil {
			lastErr = err
			continue
		}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			host, portStr, ok := strings.Cut(strings.TrimSpace(line), ":")
			if !ok {
				continue
			}
			port, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil {
				continue
			}
			records = append(records, Record{
				Address:  strings.TrimSpace(host),
				Port:     port,
				Protocol: protocol,
			})
		}
	}
	if len(records) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return records, nil
}

// GeonodeSource reads the geonode JSON API.
type GeonodeSource struct {
	Client *http.Client
	URL    string
}

// Name implements Source.
func (s *GeonodeSource) Name() string { return "geonode" }

// Fetch implements Source.
func (s *GeonodeSource) Fetch(ctx context.Context) ([]Record, error) {
	body, err := fetchBody(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []struct {
			IP             string `json:"ip"`
			Port           any    `json:"port"`
			Protocol       string `json:"protocol"`
			Country        string `json:"country"`
			AnonymityLevel string `json:"anonymityLevel"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode geonode payload: %w", err)
	}
	var records []Record
	for _, item := range payload.Data {
		port, ok := coercePort(item.Port)
		if !ok || item.IP == "" {
			continue
		}
		protocol := item.Protocol
		if protocol == "" {
			protocol = "http"
		}
		records = append(records, Record{
			Address:   item.IP,
			Port:      port,
			Protocol:  protocol,
			Country:   item.Country,
			Anonymity: item.AnonymityLevel,
		})
	}
	return records, nil
}

// coercePort accepts the string and number port encodings seen across API
// versions.
func coercePort(v any) (int, bool) {
	switch port := v.(type) {
	case string:
		n, err := strconv.Atoi(port)
		return n, err == nil
	case float64:
		return int(port), true
	default:
		return 0, false
	}
}

// ProxyNovaSource scrapes the proxynova HTML table.
type ProxyNovaSource struct {
	Client *http.Client
	URL    string
}

var proxyNovaRow = regexp.MustCompile(
	`<tr><td>(\d+\.\d+\.\d+\.\d+)</td><td>(\d+)</td><td>([A-Z]{2})</td><td>([^<]+)</td>`)

// Name implements Source.
func (s *ProxyNovaSource) Name() string { return "proxynova" }

// Fetch implements Source.
func (s *ProxyNovaSource) Fetch(ctx context.Context) ([]Record, error) {
	body, err := fetchBody(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, m := range proxyNovaRow.FindAllStringSubmatch(string(body), -1) {
		port, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		records = append(records, Record{
			Address:   m[1],
			Port:      port,
			Protocol:  "http",
			Country:   m[3],
			Anonymity: strings.TrimSpace(m[4]),
		})
	}
	return records, nil
}
