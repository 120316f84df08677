// Package transport provides the shared HTTP client and the content-hash
// verified downloader used by every upstream fetch in launchcore.
package transport

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/viki-org/dnscache"
)

const connTimeout = 5 * time.Second

var resolver = dnscache.New(15 * time.Minute)

// NewClient builds an http.Client whose dialer resolves through a 15-minute
// DNS cache and whose transport is upgraded to HTTP/2 where possible.
func NewClient() *http.Client {
	t := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		Dial: func(network, address string) (net.Conn, error) {
			sep := strings.LastIndex(address, ":")
			ip, err := resolver.FetchOne(address[:sep])
			if err != nil {
				return nil, err
			}
			ipStr := ip.String()
			if ip.To4() == nil {
				ipStr = "[" + ipStr + "]"
			}
			return net.DialTimeout("tcp", ipStr+address[sep:], connTimeout)
		},
	}

	if err := http2.ConfigureTransport(t); err != nil {
		// HTTP/2 upgrade is best-effort; fall back to HTTP/1.1 silently.
		_ = err
	}

	return &http.Client{Transport: t}
}

var defaultClient = NewClient()

// Get issues an HTTP GET with a launcher-identifying User-Agent.
func Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "launchcore/1.0")
	return defaultClient.Do(req)
}

// NormalizeURL forces forward slashes, matching spec §4.1's requirement
// that the Downloader normalize the URL before issuing the request.
func NormalizeURL(url string) string {
	return filepath.ToSlash(url)
}

// SHA1File computes the lowercase hex SHA-1 of a file's contents.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHash reports whether s looks like a 40-character lowercase hex SHA-1,
// spec §4.1's test for whether a hash should be checked at all.
func IsHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// TryDownload implements spec §4.1: fetch url into dest, verifying
// expectedHash (when it looks like a real SHA-1) and retrying on mismatch.
// A hash that isn't 40 lowercase hex characters is treated as unchecked and
// the download always succeeds once the bytes are written.
func TryDownload(url, dest, expectedHash string, retries int) error {
	url = NormalizeURL(url)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}

	resp, err := Get(url)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush %s: %w", dest, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync %s: %w", dest, err)
	}
	f.Close()

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", dest, err)
	}

	if !IsHash(expectedHash) {
		return nil
	}

	actual, err := SHA1File(dest)
	if err != nil {
		return fmt.Errorf("hash %s: %w", dest, err)
	}
	if actual == expectedHash {
		return nil
	}

	os.Remove(dest)
	if retries <= 0 {
		return &HashMismatchError{URL: url, Expected: expectedHash, Actual: actual}
	}
	return TryDownload(url, dest, expectedHash, retries-1)
}

// HashMismatchError reports that a download's content hash never matched
// expectedHash within the retry budget.
type HashMismatchError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: expected %s, got %s", e.URL, e.Expected, e.Actual)
}

// ReadString GETs url and returns the trimmed response body as a string.
func ReadString(url string) (string, error) {
	resp, err := Get(url)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
