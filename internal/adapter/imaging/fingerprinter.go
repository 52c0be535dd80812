package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"engagement-rewards/config"
	"engagement-rewards/pkg/apperror"
	"engagement-rewards/pkg/imagehash"
	"engagement-rewards/pkg/netguard"

	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxRedirects = 3

// NewHTTPClient returns the client screenshot fetches go through. Unless
// cfg.AllowPrivateNetworks is set, every dial (redirects included) is
// refused when the resolved address is loopback, private or link-local.
func NewHTTPClient(cfg config.FingerprintConfig) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	if !cfg.AllowPrivateNetworks {
		dialer.Control = netguard.Control
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	// An environment proxy would make the dial check see the proxy, not the target.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.FetchTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if !netguard.HostAllowed(req.URL.Hostname(), cfg.AllowedHosts) {
				return fmt.Errorf("redirect to host %q not allowed", req.URL.Hostname())
			}
			return nil
		},
	}
}

// Fingerprinter implements ports.Fingerprinter by downloading the screenshot
// and hashing the decoded pixels.
type Fingerprinter struct {
	client       HTTPClient
	timeout      time.Duration
	maxBytes     int64
	maxPixels    int64
	allowedHosts []string
	algorithm    imagehash.Algorithm
	log          zerolog.Logger
}

// NewFingerprinter creates a Fingerprinter from config. A nil client gets
// NewHTTPClient(cfg).
func NewFingerprinter(client HTTPClient, cfg config.FingerprintConfig, log zerolog.Logger) *Fingerprinter {
	if client == nil {
		client = NewHTTPClient(cfg)
	}
	return &Fingerprinter{
		client:       client,
		timeout:      cfg.FetchTimeout,
		maxBytes:     cfg.MaxImageBytes,
		maxPixels:    cfg.MaxPixels,
		allowedHosts: cfg.AllowedHosts,
		algorithm:    imagehash.Algorithm(cfg.Algorithm),
		log:          log,
	}
}

// Fingerprint fetches imageURL and returns its 16-character hex hash.
func (f *Fingerprinter) Fingerprint(ctx context.Context, imageURL string) (string, error) {
	data, err := f.fetch(ctx, imageURL)
	if err != nil {
		f.log.Warn().Err(err).Str("url", imageURL).Msg("screenshot fetch failed")
		return "", apperror.ErrImageFetch(err)
	}

	fp, err := f.FingerprintBytes(data)
	if err != nil {
		f.log.Warn().Err(err).Str("url", imageURL).Msg("screenshot decode failed")
		return "", err
	}
	return fp, nil
}

// FingerprintBytes hashes an already-downloaded image. The header is read
// first so a small file declaring a huge canvas is refused before any
// pixel buffer is allocated.
func (f *Fingerprinter) FingerprintBytes(data []byte) (string, error) {
	hdr, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ErrImageProcessing(fmt.Errorf("decode image header: %w", err))
	}
	if f.maxPixels > 0 && int64(hdr.Width)*int64(hdr.Height) > f.maxPixels {
		return "", apperror.ErrImageProcessing(fmt.Errorf("%s image %dx%d exceeds %d pixels", format, hdr.Width, hdr.Height, f.maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", apperror.ErrImageProcessing(fmt.Errorf("decode image: %w", err))
	}

	h, err := imagehash.Compute(img, f.algorithm)
	if err != nil {
		return "", apperror.ErrImageProcessing(fmt.Errorf("hash %s image: %w", format, err))
	}
	return h.String(), nil
}

func (f *Fingerprinter) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !netguard.HostAllowed(u.Hostname(), f.allowedHosts) {
		return nil, fmt.Errorf("host %q not allowed", u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}
