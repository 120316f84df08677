package launchcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/xi2/xz"

	"launchcore/internal/archive"
	"launchcore/internal/coordinate"
	"launchcore/internal/installledger"
	"launchcore/internal/profile"
	"launchcore/internal/rules"
	"launchcore/internal/transport"
)

func baseURLForLoader(loader Loader) string {
	switch loader {
	case LoaderForge:
		return "https://maven.creeperhost.net/"
	case LoaderNeoForge:
		return "https://maven.neoforged.net/releases/"
	case LoaderFabric:
		return "https://maven.fabricmc.net/"
	case LoaderQuilt:
		return "https://maven.quiltmc.org/repository/release/"
	default:
		return "https://libraries.minecraft.net/"
	}
}

// plannedLibrary is one library plan() decided needs downloading, per spec
// §4.7 step 1.
type plannedLibrary struct {
	Name   string
	URL    string
	Hash   string
	Path   string // relative to <game_dir>/libraries
	Legacy bool   // HasLegacyFlags and no downloads.artifact.url: try pack.xz first
}

// planLibraries implements spec §4.7's plan(libs, base_url): resolve each
// entry's coordinate to a path, skip it if the file already exists or its
// rules disallow the host, and otherwise record a download.
func planLibraries(gameDir string, libs []profile.Library, baseURL string, ctx rules.Context) ([]plannedLibrary, error) {
	var out []plannedLibrary
	for _, lib := range libs {
		allowed := rules.Evaluate(lib.Rules, ctx)
		if len(lib.Rules) == 0 && lib.HasLegacyFlags {
			allowed = rules.LegacyGate(lib.ClientReq, lib.ServerReq, true)
		}
		if !allowed {
			continue
		}

		relPath := lib.ArtifactPath
		if relPath == "" {
			coord, err := coordinate.Parse(lib.Name)
			if err != nil {
				return nil, newErr(KindMalformedProfile, err, "library %q", lib.Name)
			}
			relPath = coord.Path()
		}

		fullPath := filepath.Join(gameDir, "libraries", filepath.FromSlash(relPath))
		if _, err := os.Stat(fullPath); err == nil {
			continue
		}

		url := lib.ArtifactURL
		legacy := false
		if url == "" {
			base := baseURL
			if lib.LegacyBaseURL != "" {
				base = lib.LegacyBaseURL
			}
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			url = base + relPath
			legacy = lib.HasLegacyFlags
		}

		out = append(out, plannedLibrary{
			Name:   lib.Name,
			URL:    url,
			Hash:   lib.ArtifactSHA1,
			Path:   relPath,
			Legacy: legacy,
		})
	}
	return out, nil
}

// InstallLibraries implements spec §4.7: plan and download vanilla +
// modded + (for modern Forge/NeoForge) install-profile libraries, run
// PostProcessor, then extract natives. Requires InstallVersion to have
// already run.
func (l *Launcher) InstallLibraries() error {
	if err := l.requireInstalled(); err != nil {
		return err
	}

	l.bus.publish(ProgressEvent{Task: TaskCheckingLibraries})

	ctx := rules.HostContext(nil)

	vanillaLibs, err := profile.ParseLibraries(l.resolved.VanillaProfile)
	if err != nil {
		return newErr(KindMalformedProfile, err, "vanilla libraries")
	}
	planned, err := planLibraries(l.gameDir, vanillaLibs, baseURLForLoader(LoaderNone), ctx)
	if err != nil {
		return err
	}

	if l.resolved.ModdedProfile != nil {
		moddedLibs, err := profile.ParseLibraries(l.resolved.ModdedProfile)
		if err != nil {
			return newErr(KindMalformedProfile, err, "modded libraries")
		}
		moddedPlanned, err := planLibraries(l.gameDir, moddedLibs, baseURLForLoader(l.resolved.Loader), ctx)
		if err != nil {
			return err
		}
		planned = append(planned, moddedPlanned...)
	}

	runPostProcessor := (l.resolved.Loader == LoaderForge && !l.resolved.LegacyForge) || l.resolved.Loader == LoaderNeoForge
	if runPostProcessor && l.resolved.InstallProfile != nil {
		installLibs, err := profile.ParseLibraries(l.resolved.InstallProfile)
		if err != nil {
			return newErr(KindMalformedProfile, err, "install-profile libraries")
		}
		installPlanned, err := planLibraries(l.gameDir, installLibs, baseURLForLoader(l.resolved.Loader), ctx)
		if err != nil {
			return err
		}
		planned = append(planned, installPlanned...)
	}

	deduped := dedupeByPath(planned)

	l.bus.publish(ProgressEvent{Task: TaskDownloadingLibraries, Total: uint64(len(deduped))})
	for i, lib := range deduped {
		fullPath := filepath.Join(l.gameDir, "libraries", filepath.FromSlash(lib.Path))
		if err := downloadLibrary(l.javaExecutable, lib, fullPath); err != nil {
			return newErr(KindTransport, err, "download library %s", lib.Name)
		}
		l.bus.publish(ProgressEvent{Task: TaskDownloadingLibraries, File: lib.Name, Total: uint64(len(deduped)), Current: uint64(i + 1)})
	}

	if runPostProcessor {
		if err := l.runPostProcessor(); err != nil {
			return err
		}
	}

	if err := l.extractNatives(ctx); err != nil {
		return err
	}

	l.recordStage(installledger.StageLibraries)
	return nil
}

func dedupeByPath(libs []plannedLibrary) []plannedLibrary {
	seen := make(map[string]bool, len(libs))
	out := make([]plannedLibrary, 0, len(libs))
	for _, lib := range libs {
		if seen[lib.Path] {
			continue
		}
		seen[lib.Path] = true
		out = append(out, lib)
	}
	return out
}

// downloadLibrary fetches one planned library. Legacy-Forge libraries
// with no direct artifact URL are frequently published only as a
// signature-stripped pack200/xz stream (forge.go: downloadXzPack); this
// restores that fallback (SPEC_FULL's supplemented feature #1), trying it
// before falling back to a plain JAR GET.
func downloadLibrary(javaExecutable string, lib plannedLibrary, dest string) error {
	if lib.Legacy {
		if err := downloadXzPackLibrary(lib.URL, dest); err == nil {
			return nil
		}
	}
	return transport.TryDownload(lib.URL, dest, lib.Hash, 3)
}

func downloadXzPackLibrary(url, dest string) error {
	finalURL := url + ".pack.xz"
	resp, err := transport.Get(finalURL)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", finalURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("fetch %s: status %d", finalURL, resp.StatusCode)
	}

	xzReader, err := xz.NewReader(resp.Body, 0)
	if err != nil {
		return fmt.Errorf("open xz stream %s: %w", finalURL, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(xzReader); err != nil {
		return fmt.Errorf("decompress %s: %w", finalURL, err)
	}

	packed := buf.Bytes()
	sigLen, err := packSignatureLen(packed)
	if err != nil {
		return fmt.Errorf("strip signature %s: %w", finalURL, err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmpPack := filepath.Join(dir, "tmp.pack")
	if err := os.WriteFile(tmpPack, packed[:int64(len(packed))-sigLen], 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPack, err)
	}
	defer os.Remove(tmpPack)

	if err := exec.Command(unpack200Binary(), "-r", tmpPack, dest).Run(); err != nil {
		return fmt.Errorf("unpack200 %s: %w", dest, err)
	}
	return nil
}

// packSignatureLen reads the trailing "SIGN" marker and little-endian
// length that forge.go's downloadXzPack strips before invoking unpack200.
func packSignatureLen(data []byte) (int64, error) {
	n := len(data)
	if n < 8 || string(data[n-4:n]) != "SIGN" {
		return 0, fmt.Errorf("missing pack200 signature trailer")
	}
	var sigLen uint32
	if err := binary.Read(bytes.NewReader(data[n-8:n-4]), binary.LittleEndian, &sigLen); err != nil {
		return 0, fmt.Errorf("invalid signature length: %w", err)
	}
	return int64(sigLen) + 8, nil
}

func unpack200Binary() string {
	javaHome := os.Getenv("JAVA_HOME")
	return filepath.Join(javaHome, "bin", "unpack200"+executableExt())
}

// nativesManifest is the persisted versions/<id>-natives/natives.json
// cache: library coordinate (escaped by jsonKey, the form it is stored
// under on disk) -> extracted files, per spec §4.7.
type nativesManifest map[string][]archive.Entry

func loadNativesManifest(path string) nativesManifest {
	data, err := os.ReadFile(path)
	if err != nil {
		return nativesManifest{}
	}
	c, err := gabs.ParseJSON(data)
	if err != nil {
		return nativesManifest{}
	}
	m := nativesManifest{}
	children, err := c.ChildrenMap()
	if err != nil {
		return m
	}
	for coord, v := range children {
		entries, err := v.Children()
		if err != nil {
			continue
		}
		for _, e := range entries {
			p, _ := e.Path("path").Data().(string)
			h, _ := e.Path("sha1").Data().(string)
			m[coord] = append(m[coord], archive.Entry{Path: p, SHA1: h})
		}
	}
	return m
}

func saveNativesManifest(path string, m nativesManifest) error {
	c := gabs.New()
	for coord, entries := range m {
		for i, e := range entries {
			c.SetP(e.Path, fmt.Sprintf("%s.%d.path", jsonKey(coord), i))
			c.SetP(e.SHA1, fmt.Sprintf("%s.%d.sha1", jsonKey(coord), i))
		}
	}
	return os.WriteFile(path, []byte(c.StringIndent("", " ")), 0644)
}

// jsonKey escapes a Maven coordinate (which contains ':' and '.') into a
// gabs dotted-path-safe map key.
func jsonKey(coord string) string {
	return strings.NewReplacer(".", "_", ":", "__").Replace(coord)
}

func manifestUpToDate(entries []archive.Entry) bool {
	for _, e := range entries {
		sum, err := sha1OfFile(e.Path)
		if err != nil || sum != e.SHA1 {
			return false
		}
	}
	return len(entries) > 0
}

// extractNatives implements spec §4.7's natives pass.
func (l *Launcher) extractNatives(ctx rules.Context) error {
	l.bus.publish(ProgressEvent{Task: TaskCheckingNatives})

	nativesDir := l.nativesDir()
	if err := os.MkdirAll(nativesDir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", nativesDir)
	}
	manifestPath := filepath.Join(nativesDir, "natives.json")
	manifest := loadNativesManifest(manifestPath)

	classifierKey := "natives-" + ctx.OS
	osShort := ctx.OS
	switch ctx.OS {
	case "windows":
		osShort = "win"
	case "linux":
		osShort = "nix"
	}

	libs, err := profile.ParseLibraries(l.resolved.VanillaProfile)
	if err != nil {
		return newErr(KindMalformedProfile, err, "vanilla libraries")
	}
	if l.resolved.ModdedProfile != nil {
		moddedLibs, err := profile.ParseLibraries(l.resolved.ModdedProfile)
		if err != nil {
			return newErr(KindMalformedProfile, err, "modded libraries")
		}
		libs = append(libs, moddedLibs...)
	}

	var candidates []profile.Library
	for _, lib := range libs {
		if _, ok := lib.Classifiers[classifierKey]; ok {
			candidates = append(candidates, lib)
		}
	}

	for i, lib := range candidates {
		if !rules.Evaluate(lib.Rules, ctx) {
			continue
		}
		classifier := lib.Classifiers[classifierKey]

		manifestKey := jsonKey(lib.Name)
		if entries, ok := manifest[manifestKey]; ok && manifestUpToDate(entries) {
			continue
		} else if ok {
			for _, e := range entries {
				os.Remove(e.Path)
			}
		}

		coord, err := coordinate.Parse(lib.Name)
		if err != nil {
			return newErr(KindMalformedProfile, err, "native library %q", lib.Name)
		}
		jarName := fmt.Sprintf("%s-%s-natives-%s.jar", coord.Artifact, coord.Version, osShort)
		jarPath := filepath.Join(nativesDir, jarName)

		url := classifier.URL
		if url == "" {
			url = baseURLForLoader(LoaderNone) + coord.Path()
		}
		if err := transport.TryDownload(url, jarPath, classifier.SHA1, 3); err != nil {
			return newErr(KindTransport, err, "download natives %s", lib.Name)
		}

		entries, err := archive.ExtractAll(jarPath, nativesDir, lib.ExtractExclude)
		if err != nil {
			return newErr(KindArchiveCorrupt, err, "extract natives %s", lib.Name)
		}
		manifest[manifestKey] = entries
		os.Remove(jarPath)

		l.bus.publish(ProgressEvent{Task: TaskExtractingNatives, File: lib.Name, Total: uint64(len(candidates)), Current: uint64(i + 1)})
	}

	if err := saveNativesManifest(manifestPath, manifest); err != nil {
		log.Printf("failed to persist natives manifest %s: %+v", manifestPath, err)
	}
	return nil
}

// classpathEntries computes the union of vanilla+modded library paths that
// exist on disk and pass rule evaluation, insertion-ordered and
// deduplicated, per spec §4.7's "Classpath assembly" note and §9's decided
// sync-vs-async divergence (this core always rule-gates, the async
// behavior).
func (l *Launcher) classpathEntries() ([]string, error) {
	ctx := rules.HostContext(nil)
	seen := make(map[string]bool)
	var out []string

	add := func(libs []profile.Library) error {
		for _, lib := range libs {
			allowed := rules.Evaluate(lib.Rules, ctx)
			if len(lib.Rules) == 0 && lib.HasLegacyFlags {
				allowed = rules.LegacyGate(lib.ClientReq, lib.ServerReq, true)
			}
			if !allowed {
				continue
			}

			relPath := lib.ArtifactPath
			if relPath == "" {
				coord, err := coordinate.Parse(lib.Name)
				if err != nil {
					return newErr(KindMalformedProfile, err, "library %q", lib.Name)
				}
				relPath = coord.Path()
			}
			fullPath := filepath.Join(l.gameDir, "libraries", filepath.FromSlash(relPath))
			if _, err := os.Stat(fullPath); err != nil {
				continue
			}
			if seen[fullPath] {
				continue
			}
			seen[fullPath] = true
			out = append(out, fullPath)
		}
		return nil
	}

	vanillaLibs, err := profile.ParseLibraries(l.resolved.VanillaProfile)
	if err != nil {
		return nil, newErr(KindMalformedProfile, err, "vanilla libraries")
	}
	if err := add(vanillaLibs); err != nil {
		return nil, err
	}

	if l.resolved.ModdedProfile != nil {
		moddedLibs, err := profile.ParseLibraries(l.resolved.ModdedProfile)
		if err != nil {
			return nil, newErr(KindMalformedProfile, err, "modded libraries")
		}
		if err := add(moddedLibs); err != nil {
			return nil, err
		}
	}

	return out, nil
}
