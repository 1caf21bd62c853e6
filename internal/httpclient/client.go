package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ternarybob/longform/internal/common"
)

// maxRedirects bounds redirect chains when following research links
const maxRedirects = 5

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewResearchClient creates the client used to fetch research sources.
// The overall timeout comes from research.fetch_timeout; dial and header
// timeouts are tighter so a dead host fails fast.
func NewResearchClient(config *common.ResearchConfig) *http.Client {
	timeout := common.ParseDurationOr(config.FetchTimeout, 20*time.Second)

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}
