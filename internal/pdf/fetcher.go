// Package pdf downloads candidate documents to the destination directory and
// keeps only those that parse as PDF.
package pdf

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/helixir/pubmed-retrieval-service/internal/domain"
	"github.com/helixir/pubmed-retrieval-service/internal/transport"
)

// Sentinel errors for document fetches.
var (
	// ErrTooLarge is returned when the body exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrSSRF is returned when the URL resolves to a private/internal network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
	// ErrEmptyDocument is the validation cause for a document without pages.
	ErrEmptyDocument = errors.New("pdf: document has no pages")
)

// Extension is the file extension of stored documents.
const Extension = ".pdf"

// ValidationPolicy decides which parse outcomes count as a valid document.
type ValidationPolicy struct {
	// AcceptEmpty keeps documents that parse but report no pages. Several
	// hosts serve such files for valid articles.
	AcceptEmpty bool
}

// DefaultValidationPolicy accepts page-less documents.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{AcceptEmpty: true}
}

// Config holds fetcher configuration.
type Config struct {
	// Dir is the destination directory. Documents are stored as <pmid>.pdf.
	Dir string
	// Timeout is the HTTP request timeout. Default: 60 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// Cookie is sent with every request when set.
	Cookie string
	// MaxRetries is passed to the transport. Default: no retries.
	MaxRetries int
	// Limiter gates requests per host. Nil means unlimited.
	Limiter *transport.HostLimiter
	// AllowPrivateNetworks disables SSRF private-IP checks. This MUST only be
	// set to true in test environments.
	AllowPrivateNetworks bool
	// Policy governs documents that parse without pages.
	Policy ValidationPolicy
}

// Result describes a stored document.
type Result struct {
	Path   string
	Bytes  int64
	SHA256 string
	Pages  int
}

// Fetcher downloads and validates documents.
type Fetcher struct {
	http                 *transport.Client
	dir                  string
	maxSize              int64
	policy               ValidationPolicy
	allowPrivateNetworks bool // For testing only; never enable in production.
}

// NewFetcher creates a Fetcher with the given configuration.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 * 1024 * 1024 // 100MB
	}

	f := &Fetcher{
		dir:                  cfg.Dir,
		maxSize:              cfg.MaxSize,
		policy:               cfg.Policy,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	f.http = transport.NewClient(transport.Config{
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Headers:    transport.BrowserHeaders(cfg.Cookie),
		Limiter:    cfg.Limiter,
		// Validate each redirect URL against private IP checks to prevent
		// SSRF via open redirects that land on internal network addresses.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrSSRF)
			}
			if !f.allowPrivateNetworks {
				if err := validateURLNotPrivate(req.URL.String()); err != nil {
					return err
				}
			}
			return nil
		},
	})

	return f
}

// Client returns the HTTP client used for document hosts, so embedding pages
// are fetched with the same headers, limits and redirect checks.
func (f *Fetcher) Client() *transport.Client {
	return f.http
}

// Dir returns the destination directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// Path returns the destination path of pmid's document.
func (f *Fetcher) Path(pmid string) string {
	return filepath.Join(f.dir, pmid+Extension)
}

// Exists reports whether a non-empty document for pmid is already stored.
func (f *Fetcher) Exists(pmid string) bool {
	info, err := os.Stat(f.Path(pmid))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// FetchAndValidate downloads rawURL and stores it as pmid's document when it
// parses as PDF. A non-200 response is a *domain.TransportError and leaves the
// destination untouched. A body that fails validation is removed and reported
// as *domain.InvalidDocumentError.
func (f *Fetcher) FetchAndValidate(ctx context.Context, pmid, rawURL string) (*Result, error) {
	if !f.allowPrivateNetworks {
		if err := validateURLNotPrivate(rawURL); err != nil {
			return nil, domain.NewTransportError(rawURL, 0, err)
		}
	}

	resp, err := f.http.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, domain.NewTransportError(rawURL, resp.StatusCode, nil)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	// The body is staged next to the destination and renamed into place only
	// after validation, so a rejected or partial body never sits at the
	// destination path.
	tmp, err := os.CreateTemp(f.dir, pmid+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	staged := tmp.Name()
	defer func() { _ = os.Remove(staged) }()

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hash), io.LimitReader(resp.Body, f.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return nil, domain.NewTransportError(rawURL, 0, fmt.Errorf("read body: %w", err))
	}
	if closeErr != nil {
		return nil, fmt.Errorf("write staging file: %w", closeErr)
	}
	if n > f.maxSize {
		return nil, domain.NewInvalidDocumentError(f.Path(pmid), fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, f.maxSize))
	}

	pages, err := f.validate(staged)
	if err != nil {
		return nil, domain.NewInvalidDocumentError(f.Path(pmid), err)
	}

	dest := f.Path(pmid)
	if err := os.Rename(staged, dest); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	return &Result{
		Path:   dest,
		Bytes:  n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
		Pages:  pages,
	}, nil
}

func (f *Fetcher) validate(path string) (int, error) {
	pages, err := Validate(path)
	if err != nil {
		return 0, err
	}
	if pages == 0 && !f.policy.AcceptEmpty {
		return 0, ErrEmptyDocument
	}
	return pages, nil
}

// isPrivateIP returns true if the IP address is in a private, loopback, or
// otherwise non-routable range. Covers both IPv4 and IPv6 private ranges.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	return false
}

// validateURLNotPrivate resolves the hostname and rejects private IPs.
func validateURLNotPrivate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}

	// Reject non-HTTP(S) schemes to prevent file://, gopher://, etc.
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, parsed.Scheme)
	}

	host := parsed.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, ipStr)
		}
	}
	return nil
}
