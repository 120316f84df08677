// Package archive reads ZIP entries for install-profile extraction and
// native-library extraction, per spec §4.2.
package archive

import (
	"archive/zip"
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one file materialized by ExtractAll, recorded so callers can
// persist a natives.json-style inventory.
type Entry struct {
	Path string
	SHA1 string
}

// excluded applies spec §4.2's archive-level skip rules for ExtractAll
// (entries ending in .git/.sha1, or starting with META-INF) plus any
// caller-supplied extra prefixes.
func excluded(name string, extra []string) bool {
	if strings.HasSuffix(name, ".git") || strings.HasSuffix(name, ".sha1") {
		return true
	}
	if strings.HasPrefix(name, "META-INF") {
		return true
	}
	for _, prefix := range extra {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ExtractOne extracts a single named entry from zipPath to destPath.
// Idempotent: if destPath already exists, it returns success without
// touching the archive.
func ExtractOne(zipPath, entryName, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return nil
	}

	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}
		if f.FileInfo().IsDir() {
			return os.MkdirAll(destPath, 0755)
		}
		return extractFile(f, destPath)
	}
	return fmt.Errorf("entry %s not found in %s", entryName, zipPath)
}

// ExtractAll streams every non-excluded entry of zipPath into destDir,
// honoring both the archive-level exclusions and any caller-supplied
// extra prefixes (per-library extract.exclude in spec §4.7). It returns an
// inventory record for every file present on disk afterward, whether
// newly extracted or already there.
func ExtractAll(zipPath, destDir string, extraExclusions []string) ([]Entry, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer r.Close()

	var out []Entry
	for _, f := range r.File {
		if excluded(f.Name, extraExclusions) {
			continue
		}

		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dest, err)
			}
			continue
		}

		if err := extractFile(f, dest); err != nil {
			return nil, err
		}

		sum, err := sha1File(dest)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", dest, err)
		}
		out = append(out, Entry{Path: dest, SHA1: sum})
	}
	return out, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}

func sha1File(path string) (string, error) {
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

// MainClass reads META-INF/MANIFEST.MF out of jarPath and returns the
// Main-Class attribute, the way util.go's getJavaMainClass does for
// PostProcessor's per-processor java invocation (spec §4.8).
func MainClass(jarPath string) (string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", jarPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open manifest in %s: %w", jarPath, err)
		}
		defer rc.Close()

		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "Main-Class:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:")), nil
			}
		}
		return "", fmt.Errorf("%s: no Main-Class attribute", jarPath)
	}
	return "", fmt.Errorf("%s: no META-INF/MANIFEST.MF entry", jarPath)
}

// ReadJSON reads a single ZIP entry's raw bytes, for callers that want to
// decode it themselves (install_profile.json, version.json, etc. are
// decoded into the gabs-backed profile trees by the profile package).
func ReadJSON(zipPath, entryName string) ([]byte, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", zipPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("entry %s not found in %s", entryName, zipPath)
}
