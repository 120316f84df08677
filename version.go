package launchcore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"
)

// ResolvedVersion is the mutable, in-memory record of everything the
// resolver and installers have learned about one VersionRequest. It is
// owned exclusively by the Launcher that created it; sub-operations only
// ever borrow it.
type ResolvedVersion struct {
	ID              string
	Loader          Loader
	LoaderVersion   string
	VanillaProfile  *gabs.Container
	ModdedProfile   *gabs.Container
	InstallProfile  *gabs.Container
	LegacyForge     bool
	ModdedID        string // versions/<ModdedID>/ for the loader profile
}

// vanillaVersionDir returns versions/<id>.
func (l *Launcher) vanillaVersionDir() string {
	return filepath.Join(l.gameDir, "versions", l.request.MinecraftVersion)
}

// moddedVersionDir returns the per-loader versions/<modded-id> directory
// named per spec §3's directory layout.
func (l *Launcher) moddedVersionDir(moddedID string) string {
	return filepath.Join(l.gameDir, "versions", moddedID)
}

// moddedID computes the versions/ subdirectory name for the requested
// loader, per spec §3's directory layout table.
func moddedID(req VersionRequest) string {
	switch req.Loader {
	case LoaderForge:
		return "forge-" + req.MinecraftVersion + "-" + req.LoaderVersion
	case LoaderNeoForge:
		return "neoforge-" + req.LoaderVersion
	case LoaderFabric:
		return "fabric-loader-" + req.MinecraftVersion + "-" + req.LoaderVersion
	case LoaderQuilt:
		return "quilt-loader-" + req.LoaderVersion
	default:
		return ""
	}
}

// nativesDir returns versions/<id>-natives.
func (l *Launcher) nativesDir() string {
	return filepath.Join(l.gameDir, "versions", l.request.MinecraftVersion+"-natives")
}

// computeLegacyForge implements spec §3's predicate exactly:
//
//	legacy_forge = true iff loader=forge and
//	  (minor < 12) or (minor=12 and patch<2) or
//	  (minor=12 and patch=2 and forge_patch <= 2847)
func computeLegacyForge(req VersionRequest) (bool, error) {
	if req.Loader != LoaderForge {
		return false, nil
	}

	_, minor, patch, err := parseMCVersion(req.MinecraftVersion)
	if err != nil {
		return false, err
	}

	if minor < 12 {
		return true, nil
	}
	if minor == 12 && patch < 2 {
		return true, nil
	}
	if minor == 12 && patch == 2 {
		return forgePatch(req.LoaderVersion) <= 2847, nil
	}
	return false, nil
}

// parseMCVersion splits a Minecraft id like "1.12.2" into major.minor.patch.
// A missing patch component defaults to 0.
func parseMCVersion(id string) (major, minor, patch int, err error) {
	parts := strings.SplitN(id, ".", 3)
	if len(parts) < 2 {
		return 0, 0, 0, fmt.Errorf("malformed minecraft version %q", id)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed minecraft version %q: %w", id, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("malformed minecraft version %q: %w", id, err)
	}
	if len(parts) == 3 {
		patch, err = strconv.Atoi(parts[2])
		if err != nil {
			return 0, 0, 0, fmt.Errorf("malformed minecraft version %q: %w", id, err)
		}
	}
	return major, minor, patch, nil
}

// forgePatch extracts the fourth dotted segment of a Forge loader version
// string (e.g. "14.23.5.2847" -> 2847). Defaults to 0 when absent or
// unparseable, per spec §3.
func forgePatch(loaderVersion string) int {
	parts := strings.Split(loaderVersion, ".")
	if len(parts) < 4 {
		return 0
	}
	n, err := strconv.Atoi(parts[3])
	if err != nil {
		return 0
	}
	return n
}
