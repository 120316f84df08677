package launchcore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jeffail/gabs"

	"launchcore/internal/archive"
	"launchcore/internal/transport"
)

const (
	forgeInstallerURLTemplate    = "https://maven.creeperhost.net/net/minecraftforge/forge/%s-%s/forge-%s-%s-installer.jar"
	neoforgeInstallerURLTemplate = "https://maven.neoforged.net/releases/net/neoforged/neoforge/%s/neoforge-%s-installer.jar"
	fabricProfileURLTemplate     = "https://meta.fabricmc.net/v2/versions/loader/%s/%s/profile/json"
	quiltProfileURLTemplate      = "https://meta.quiltmc.org/v3/versions/loader/%s/%s/profile/json"
)

// installModLoader implements spec §4.5: download the requested loader's
// installer (or manifest, for Fabric/Quilt) and materialize its modded
// profile, install profile and any bundled artifacts under
// versions/<modded-id>/. A 4xx/5xx on the installer fetch surfaces
// UnsupportedLoaderVersion; the caller (InstallVersion) rolls back
// versions/<id>/ in that case.
func (l *Launcher) installModLoader(resolved *ResolvedVersion) error {
	switch l.request.Loader {
	case LoaderForge:
		if resolved.LegacyForge {
			return l.installLegacyForge(resolved)
		}
		return l.installModernForgeLike(resolved, fmt.Sprintf(forgeInstallerURLTemplate,
			l.request.MinecraftVersion, l.request.LoaderVersion,
			l.request.MinecraftVersion, l.request.LoaderVersion))
	case LoaderNeoForge:
		return l.installModernForgeLike(resolved, fmt.Sprintf(neoforgeInstallerURLTemplate,
			l.request.LoaderVersion, l.request.LoaderVersion))
	case LoaderFabric:
		url := fmt.Sprintf(fabricProfileURLTemplate, l.request.MinecraftVersion, l.request.LoaderVersion)
		return l.installLoaderProfile(resolved, url)
	case LoaderQuilt:
		url := fmt.Sprintf(quiltProfileURLTemplate, l.request.MinecraftVersion, l.request.LoaderVersion)
		return l.installLoaderProfile(resolved, url)
	default:
		return nil
	}
}

// installLoaderProfile handles Fabric/Quilt: GET a ready-made profile JSON
// and persist it verbatim as the modded profile.
func (l *Launcher) installLoaderProfile(resolved *ResolvedVersion, url string) error {
	dir := l.moddedVersionDir(resolved.ModdedID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", dir)
	}

	body, err := transport.ReadString(url)
	if err != nil {
		return newErr(KindUnsupportedLoaderVersion, err, "fetch loader profile %s", url)
	}

	dest := filepath.Join(dir, resolved.ModdedID+".json")
	if err := os.WriteFile(dest, []byte(body), 0644); err != nil {
		return newErr(KindIO, err, "write %s", dest)
	}

	moddedProfile, err := gabs.ParseJSON([]byte(body))
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse loader profile from %s", url)
	}
	resolved.ModdedProfile = moddedProfile
	return nil
}

// downloadInstallerJar fetches installerURL into a scratch file under
// os.TempDir, mirroring forge.go's installForge (which buffers the whole
// installer in memory before handing it to a ZipHelper); here it lands on
// disk instead since internal/archive operates on file paths.
func (l *Launcher) downloadInstallerJar(installerURL string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "launchcore-installer")
	if err != nil {
		return "", nil, newErr(KindIO, err, "create scratch directory")
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	jarPath := filepath.Join(tmpDir, "installer.jar")
	if err := transport.TryDownload(installerURL, jarPath, "", 3); err != nil {
		cleanup()
		return "", nil, newErr(KindUnsupportedLoaderVersion, err, "download installer %s", installerURL)
	}
	return jarPath, cleanup, nil
}

// installModernForgeLike covers both modern Forge and NeoForge: extract
// version.json as the modded profile, install_profile.json as the install
// profile, and data/client.lzma to <game_dir>/data/client.lzma.
func (l *Launcher) installModernForgeLike(resolved *ResolvedVersion, installerURL string) error {
	jarPath, cleanup, err := l.downloadInstallerJar(installerURL)
	if err != nil {
		return err
	}
	defer cleanup()

	dir := l.moddedVersionDir(resolved.ModdedID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", dir)
	}

	versionJSON, err := archive.ReadJSON(jarPath, "version.json")
	if err != nil {
		return newErr(KindArchiveCorrupt, err, "read version.json from installer")
	}
	versionDest := filepath.Join(dir, resolved.ModdedID+".json")
	if err := os.WriteFile(versionDest, versionJSON, 0644); err != nil {
		return newErr(KindIO, err, "write %s", versionDest)
	}
	moddedProfile, err := gabs.ParseJSON(versionJSON)
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse version.json")
	}
	resolved.ModdedProfile = moddedProfile

	installJSON, err := archive.ReadJSON(jarPath, "install_profile.json")
	if err != nil {
		return newErr(KindArchiveCorrupt, err, "read install_profile.json from installer")
	}
	installDest := filepath.Join(dir, "install_profile.json")
	if err := os.WriteFile(installDest, installJSON, 0644); err != nil {
		return newErr(KindIO, err, "write %s", installDest)
	}
	installProfile, err := gabs.ParseJSON(installJSON)
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse install_profile.json")
	}
	resolved.InstallProfile = installProfile

	dataDest := filepath.Join(l.gameDir, "data", "client.lzma")
	if err := archive.ExtractOne(jarPath, "data/client.lzma", dataDest); err != nil {
		// Not every modern installer ships a client.lzma (NeoForge's newer
		// releases resolve the client diff a different way); absence here
		// is not fatal, only a missing optional artifact.
		_ = err
	}

	return nil
}

// installLegacyForge covers pre-modern Forge (spec §3's legacy_forge
// predicate): the installer has no standalone version.json, only an
// install_profile.json whose "versionInfo" section IS the modded profile
// and whose "install" section describes where the universal jar lives,
// exactly as forge.go's installForge discovers at runtime.
func (l *Launcher) installLegacyForge(resolved *ResolvedVersion) error {
	installerURL := fmt.Sprintf(forgeInstallerURLTemplate,
		l.request.MinecraftVersion, l.request.LoaderVersion,
		l.request.MinecraftVersion, l.request.LoaderVersion)

	jarPath, cleanup, err := l.downloadInstallerJar(installerURL)
	if err != nil {
		return err
	}
	defer cleanup()

	installProfileRaw, err := archive.ReadJSON(jarPath, "install_profile.json")
	if err != nil {
		return newErr(KindArchiveCorrupt, err, "read install_profile.json from legacy installer")
	}
	installProfileFull, err := gabs.ParseJSON(installProfileRaw)
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse install_profile.json")
	}
	if !installProfileFull.ExistsP("versionInfo") {
		return newErr(KindMalformedProfile, nil, "legacy installer missing versionInfo section")
	}

	versionInfo := installProfileFull.Path("versionInfo")
	versionInfo.SetP(resolved.ModdedID, "id")

	dir := l.moddedVersionDir(resolved.ModdedID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", dir)
	}

	versionDest := filepath.Join(dir, resolved.ModdedID+".json")
	if err := os.WriteFile(versionDest, []byte(versionInfo.StringIndent("", " ")), 0644); err != nil {
		return newErr(KindIO, err, "write %s", versionDest)
	}
	resolved.ModdedProfile = versionInfo

	installSection := installProfileFull.Path("install")
	artifactID, _ := installSection.Path("path").Data().(string)
	sourcePath, _ := installSection.Path("filePath").Data().(string)
	if artifactID == "" || sourcePath == "" {
		return newErr(KindMalformedProfile, nil, "legacy install section missing path/filePath")
	}

	jarName := fmt.Sprintf("%s.jar", resolved.ModdedID)
	jarDest := filepath.Join(dir, jarName)
	if err := archive.ExtractOne(jarPath, sourcePath, jarDest); err != nil {
		return newErr(KindArchiveCorrupt, err, "extract universal jar %s", sourcePath)
	}

	// Legacy Forge has no processors for PostProcessor. Its libraries are
	// the ones listed in versionInfo (the modded profile), which
	// InstallLibraries plans with clientreq/serverreq gating. The "install"
	// section kept here as InstallProfile is not read by InstallLibraries or
	// runPostProcessor for legacy Forge.
	resolved.InstallProfile = installProfileFull.Path("install")

	return nil
}
