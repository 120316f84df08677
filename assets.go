package launchcore

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"

	"launchcore/internal/installledger"
	"launchcore/internal/profile"
	"launchcore/internal/transport"
)

const resourcesBaseURL = "https://resources.download.minecraft.net"

// InstallAssets implements spec §4.6: fetch the asset index, garbage
// collect stale objects, download missing ones, and apply the log4j
// mitigation for 1.17.x/1.18 clients. Requires InstallVersion to have
// already run.
func (l *Launcher) InstallAssets() error {
	if err := l.requireInstalled(); err != nil {
		return err
	}

	l.bus.publish(ProgressEvent{Task: TaskCheckingAssets})

	assetsDir := filepath.Join(l.gameDir, "assets")
	indexesDir := filepath.Join(assetsDir, "indexes")
	objectsDir := filepath.Join(assetsDir, "objects")
	if err := os.MkdirAll(indexesDir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", indexesDir)
	}
	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", objectsDir)
	}

	vanilla := l.resolved.VanillaProfile

	if err := l.applyLog4jMitigation(assetsDir, vanilla); err != nil {
		return err
	}

	assetsID, ok := profile.GetString(vanilla, "assets")
	if !ok {
		assetsID = "legacy"
	}
	indexPath := filepath.Join(indexesDir, assetsID+".json")
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		indexURL, err := profile.RequireString(vanilla, "assetIndex.url")
		if err != nil {
			return newErr(KindMalformedProfile, err, "vanilla profile missing assetIndex.url")
		}
		if err := transport.TryDownload(indexURL, indexPath, "", 3); err != nil {
			return newErr(KindTransport, err, "download asset index %s", assetsID)
		}
	}

	index, err := profile.Load(indexPath)
	if err != nil {
		return newErr(KindMalformedProfile, err, "parse asset index %s", indexPath)
	}

	objects, err := index.Path("objects").ChildrenMap()
	if err != nil {
		return newErr(KindMalformedProfile, err, "asset index %s has no objects map", assetsID)
	}

	validHashes := make(map[string]bool, len(objects))
	for _, obj := range objects {
		if hash, ok := obj.Path("hash").Data().(string); ok {
			validHashes[hash] = true
		}
	}

	if err := gcAssetObjects(objectsDir, validHashes); err != nil {
		return err
	}

	type missingObject struct {
		name string
		hash string
		size uint64
	}
	var missing []missingObject
	var total uint64
	for name, obj := range objects {
		hash, _ := obj.Path("hash").Data().(string)
		size := uint64(intOrZero(obj, "size"))
		dest := filepath.Join(objectsDir, hash[:2], hash)
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		missing = append(missing, missingObject{name: name, hash: hash, size: size})
		total += size
	}

	l.bus.publish(ProgressEvent{Task: TaskDownloadingAssets, Total: total})

	legacy := assetsID == "legacy" || assetsID == "pre-1.6"
	resourcesDir := filepath.Join(l.gameDir, "resources")

	var current uint64
	for _, m := range missing {
		dest := filepath.Join(objectsDir, m.hash[:2], m.hash)
		url := resourcesBaseURL + "/" + m.hash[:2] + "/" + m.hash
		if err := transport.TryDownload(url, dest, m.hash, 3); err != nil {
			return newErr(KindTransport, err, "download asset %s", m.name)
		}

		if legacy {
			legacyDest := filepath.Join(resourcesDir, filepath.FromSlash(m.name))
			if err := copyFile(dest, legacyDest); err != nil {
				return newErr(KindIO, err, "copy legacy asset %s", m.name)
			}
		}

		current += m.size
		l.bus.publish(ProgressEvent{Task: TaskDownloadingAssets, File: m.name, Total: total, Current: current})
	}

	l.recordStage(installledger.StageAssets)
	return nil
}

// gcAssetObjects implements spec §4.6 step 5: any file in a shard
// directory objectsDir/<xx>/ whose name isn't a hash referenced by the
// current index, or whose recomputed SHA-1 doesn't match its own filename,
// is deleted. Only that one level is examined: files directly in
// objectsDir and anything nested below a shard directory are left alone.
func gcAssetObjects(objectsDir string, validHashes map[string]bool) error {
	entries, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newErr(KindIO, err, "read %s", objectsDir)
	}

	for _, shard := range entries {
		if !shard.IsDir() {
			continue
		}
		shardDir := filepath.Join(objectsDir, shard.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			return newErr(KindIO, err, "read %s", shardDir)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			path := filepath.Join(shardDir, f.Name())
			stale := !validHashes[f.Name()]
			if !stale {
				sum, err := sha1OfFile(path)
				if err != nil {
					return newErr(KindIO, err, "hash %s", path)
				}
				stale = sum != f.Name()
			}
			if stale {
				log.Printf("removing stale asset object %s", path)
				if err := os.Remove(path); err != nil {
					return newErr(KindIO, err, "remove %s", path)
				}
			}
		}
	}
	return nil
}

// applyLog4jMitigation implements the decided policy (see DESIGN.md): the
// log4j config is fetched and the JVM mitigation args appended inside
// InstallAssets, to assets/log_configs/<id>, for Minecraft 1.17.x (any
// patch) or exactly the two-component "1.18" release.
func (l *Launcher) applyLog4jMitigation(assetsDir string, vanilla *gabs.Container) error {
	if !vanilla.ExistsP("logging.client") {
		return nil
	}

	id := l.resolved.ID
	if !(strings.HasPrefix(id, "1.17") || id == "1.18") {
		return nil
	}

	fileID, ok := profile.GetString(vanilla, "logging.client.file.id")
	if !ok {
		return nil
	}
	fileURL, ok := profile.GetString(vanilla, "logging.client.file.url")
	if !ok {
		return nil
	}
	argumentTemplate, ok := profile.GetString(vanilla, "logging.client.argument")
	if !ok {
		return nil
	}

	logConfigsDir := filepath.Join(assetsDir, "log_configs")
	if err := os.MkdirAll(logConfigsDir, 0755); err != nil {
		return newErr(KindIO, err, "create %s", logConfigsDir)
	}
	dest := filepath.Join(logConfigsDir, fileID)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		if err := transport.TryDownload(fileURL, dest, "", 3); err != nil {
			return newErr(KindTransport, err, "download log4j config %s", fileID)
		}
	}

	l.AddJvmArg(strings.ReplaceAll(argumentTemplate, "${path}", dest))
	l.AddJvmArg("-Dlog4j2.formatMsgNoLookups=true")
	return nil
}

func intOrZero(c *gabs.Container, path string) int {
	switch v := c.Path(path).Data().(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func sha1OfFile(path string) (string, error) {
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

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
