package util

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ppiankov/snpscope/internal/model"
)

// MaxRedirects caps redirect chains for every outbound client
const MaxRedirects = 5

// NewHTTPClient builds the shared outbound client from configuration
func NewHTTPClient(cfg model.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	transport.MaxIdleConnsPerHost = 10

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			return nil
		},
	}
}

// WithTimeout returns a shallow copy of client with a different overall timeout
func WithTimeout(client *http.Client, timeout time.Duration) *http.Client {
	c := *client
	c.Timeout = timeout
	return &c
}
