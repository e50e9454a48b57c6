package httputil

import (
	"net"
	"net/http"
	"time"
)

const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type Clients struct {
	Render *http.Client // render API (Firecrawl); per-request deadlines come from ctx
	API    *http.Client // vision gateway, storage REST
}

func NewClients() *Clients {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}

	return &Clients{
		Render: &http.Client{Timeout: 90 * time.Second, Transport: transport},
		API:    &http.Client{Timeout: 60 * time.Second, Transport: transport},
	}
}
