package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	MaxFileSize    = 30 * 1024 * 1024 // 30MB
	ConnectTimeout = 10 * time.Second
	OverallTimeout = 30 * time.Second
)

var (
	ErrPrivateAddress = errors.New("connection to private IP address is not allowed")
	ErrTooLarge       = errors.New("file too large")
	ErrInvalidURL     = errors.New("invalid URL")
)

// HTTPFetcher downloads remote images with SSRF protection: every resolved
// address is checked and the connection goes to the checked address.
type HTTPFetcher struct {
	client       *http.Client
	userAgent    string
	maxBytes     int64
	allowHTTP    bool
	allowPrivate bool
}

type FetcherOption func(*HTTPFetcher)

// WithLocalNetwork lifts the private-address and HTTPS-only guards. Only
// meant for tests against httptest servers.
func WithLocalNetwork() FetcherOption {
	return func(f *HTTPFetcher) {
		f.allowHTTP = true
		f.allowPrivate = true
	}
}

// WithMaxBytes overrides MaxFileSize.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		userAgent: "blurhash-extract/1.0",
		maxBytes:  MaxFileSize,
	}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: ConnectTimeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses for %s", host)
			}

			for _, ip := range ips {
				if !f.allowPrivate && isPrivateIP(ip.IP) {
					return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip.IP)
				}
			}

			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	f.client = &http.Client{
		Transport: transport,
		Timeout:   OverallTimeout,
	}
	return f
}

// FetchURL downloads urlStr and returns the body with its content type,
// sniffed when the server does not send one.
func (f *HTTPFetcher) FetchURL(ctx context.Context, urlStr string) ([]byte, string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch {
	case parsedURL.Scheme == "https":
	case parsedURL.Scheme == "http" && f.allowHTTP:
	default:
		return nil, "", fmt.Errorf("%w: only HTTPS URLs are allowed", ErrInvalidURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	// one byte over the limit tells a truncated body from an exact fit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	contentType := NormalizeMIME(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = NormalizeMIME(DetectContentType(body))
	}

	return body, contentType, nil
}

// isPrivateIP reports loopback, link-local, private and unspecified addresses
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
