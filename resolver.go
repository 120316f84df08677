package launchcore

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/Jeffail/gabs"

	"launchcore/internal/installledger"
	"launchcore/internal/profile"
	"launchcore/internal/transport"
)

// pistonMetaManifest is the piston-meta version manifest URL, per spec §6 —
// note this supersedes the teacher's older launchermeta.mojang.com host
// (minecraft.go: GLOBAL_MANIFEST), which the upstream service has since
// deprecated in favor of this one.
const pistonMetaManifest = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// InstallVersion implements spec §4.4: fetch (or reuse) the vanilla
// profile and JAR, dispatch to ModInstaller when a loader is requested,
// and populate l.resolved from whatever ends up on disk. It must complete
// before InstallLibraries or InstallAssets.
func (l *Launcher) InstallVersion() error {
	id := l.request.MinecraftVersion
	versionDir := filepath.Join(l.gameDir, "versions", id)
	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", versionDir)
	}

	vanillaPath := filepath.Join(versionDir, id+".json")
	if _, err := os.Stat(vanillaPath); os.IsNotExist(err) {
		if err := l.fetchVanillaProfile(id, vanillaPath); err != nil {
			os.RemoveAll(versionDir)
			return err
		}
	}

	vanillaProfile, err := profile.Load(vanillaPath)
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse %s", vanillaPath)
	}

	jarPath := filepath.Join(versionDir, id+".jar")
	if _, err := os.Stat(jarPath); os.IsNotExist(err) {
		clientURL, err := profile.RequireString(vanillaProfile, "downloads.client.url")
		if err != nil {
			return newErr(KindMalformedProfile, err, "vanilla profile %s", id)
		}
		if err := transport.TryDownload(clientURL, jarPath, "", 3); err != nil {
			return newErr(KindTransport, err, "download %s client jar", id)
		}
	}

	legacyForge, err := computeLegacyForge(l.request)
	if err != nil {
		return newErr(KindMalformedProfile, err, "compute legacy_forge for %s", id)
	}

	resolved := &ResolvedVersion{
		ID:             id,
		Loader:         l.request.Loader,
		LoaderVersion:  l.request.LoaderVersion,
		VanillaProfile: vanillaProfile,
		LegacyForge:    legacyForge,
	}

	if l.request.Loader != LoaderNone {
		resolved.ModdedID = moddedID(l.request)
		if err := l.installModLoader(resolved); err != nil {
			var lcErr *Error
			if errors.As(err, &lcErr) && lcErr.Kind == KindUnsupportedLoaderVersion {
				os.RemoveAll(versionDir)
			}
			return err
		}
	}

	l.resolved = resolved
	l.recordStage(installledger.StageVersion)
	return nil
}

func (l *Launcher) fetchVanillaProfile(id, destPath string) error {
	manifestJSON, err := transport.ReadString(pistonMetaManifest)
	if err != nil {
		return newErr(KindTransport, err, "fetch piston-meta manifest")
	}
	manifest, err := gabs.ParseJSON([]byte(manifestJSON))
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse piston-meta manifest")
	}

	versions, err := manifest.Path("versions").Children()
	if err != nil {
		return newErr(KindMalformedProfile, err, "piston-meta manifest has no versions array")
	}

	var entryURL string
	for _, v := range versions {
		if s, ok := v.Path("id").Data().(string); ok && s == id {
			entryURL, _ = v.Path("url").Data().(string)
			break
		}
	}
	if entryURL == "" {
		return newErr(KindMalformedProfile, nil, "no piston-meta entry for minecraft version %q", id)
	}

	return transport.TryDownload(entryURL, destPath, "", 3)
}
