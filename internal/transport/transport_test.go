package transport

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestTryDownload_PlainFile(t *testing.T) {
	content := []byte("Hello, launcher")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := TryDownload(server.URL, dest, "", 3); err != nil {
		t.Fatalf("TryDownload failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q, want %q", got, content)
	}
}

func TestTryDownload_HashVerified(t *testing.T) {
	content := []byte("verified content")
	sum := sha1.Sum(content)
	expected := hex.EncodeToString(sum[:])

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := TryDownload(server.URL, dest, expected, 3); err != nil {
		t.Fatalf("TryDownload failed: %v", err)
	}
}

// TestTryDownload_RetryThenSucceed mirrors spec S6: a mock server returns
// wrong bytes twice then correct bytes; with retries=3 the call must
// eventually succeed and land the correct content on disk.
func TestTryDownload_RetryThenSucceed(t *testing.T) {
	good := []byte("correct bytes")
	sum := sha1.Sum(good)
	expected := hex.EncodeToString(sum[:])

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.Write([]byte("wrong bytes"))
			return
		}
		w.Write(good)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := TryDownload(server.URL, dest, expected, 3); err != nil {
		t.Fatalf("TryDownload should eventually succeed: %v", err)
	}

	actual, err := SHA1File(dest)
	if err != nil {
		t.Fatalf("hashing result: %v", err)
	}
	if actual != expected {
		t.Errorf("final file hash = %s, want %s", actual, expected)
	}
	if calls < 3 {
		t.Errorf("expected at least 3 server calls, got %d", calls)
	}
}

// TestTryDownload_RetriesExhausted mirrors spec S6's second half: with
// retries=0 on a first hash failure, HashMismatch is returned.
func TestTryDownload_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wrong bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	err := TryDownload(server.URL, dest, "0000000000000000000000000000000000000000", 0)
	if err == nil {
		t.Fatal("expected a hash mismatch error")
	}
	var hashErr *HashMismatchError
	if !asHashMismatch(err, &hashErr) {
		t.Errorf("expected *HashMismatchError, got %T: %v", err, err)
	}

	if _, statErr := os.Stat(dest); statErr == nil {
		t.Error("destination file should have been removed after exhausted retries")
	}
}

func asHashMismatch(err error, target **HashMismatchError) bool {
	if e, ok := err.(*HashMismatchError); ok {
		*target = e
		return true
	}
	return false
}

func TestTryDownload_UnheckedHashAlwaysSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("anything"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	// "not-a-real-hash" is not 40 lowercase hex chars: unchecked.
	if err := TryDownload(server.URL, dest, "not-a-real-hash", 0); err != nil {
		t.Fatalf("unchecked hash should always succeed: %v", err)
	}
}

func TestIsHash(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"da39a3ee5e6b4b0d3255bfef95601890afd80709", true},
		{"DA39A3EE5E6B4B0D3255BFEF95601890AFD80709", false}, // uppercase not accepted
		{"", false},
		{"abc", false},
		{"legacy", false},
	}
	for _, c := range cases {
		if got := IsHash(c.in); got != c.want {
			t.Errorf("IsHash(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeURL(t *testing.T) {
	if got := NormalizeURL("https://example.com/a/b"); got != "https://example.com/a/b" {
		t.Errorf("NormalizeURL should not alter forward-slash URLs, got %q", got)
	}
}
