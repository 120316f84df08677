package launchcore

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Jeffail/gabs"
)

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestGcAssetObjects_RemovesStaleAndCorrupted(t *testing.T) {
	objectsDir := t.TempDir()

	valid := hashOf("keep me")
	stale := hashOf("stale entry")
	corrupted := hashOf("original contents")

	write := func(hash, contents string) {
		shard := filepath.Join(objectsDir, hash[:2])
		if err := os.MkdirAll(shard, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(shard, hash), []byte(contents), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write(valid, "keep me")
	write(stale, "stale entry")
	write(corrupted, "tampered contents")

	validHashes := map[string]bool{valid: true, corrupted: true}
	if err := gcAssetObjects(objectsDir, validHashes); err != nil {
		t.Fatalf("gcAssetObjects failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(objectsDir, valid[:2], valid)); err != nil {
		t.Error("valid object with matching hash should survive")
	}
	if _, err := os.Stat(filepath.Join(objectsDir, stale[:2], stale)); !os.IsNotExist(err) {
		t.Error("object absent from the index should be removed")
	}
	if _, err := os.Stat(filepath.Join(objectsDir, corrupted[:2], corrupted)); !os.IsNotExist(err) {
		t.Error("object whose contents no longer hash to its filename should be removed")
	}
}

func TestGcAssetObjects_MissingDirIsNotAnError(t *testing.T) {
	if err := gcAssetObjects(filepath.Join(t.TempDir(), "does-not-exist"), nil); err != nil {
		t.Errorf("a missing objects directory should be a no-op, got %v", err)
	}
}

func vanillaWithLogging(id string) *gabs.Container {
	c, _ := gabs.ParseJSON([]byte(`{
		"id": "` + id + `",
		"logging": {
			"client": {
				"argument": "-Dlog4j.configurationFile=${path}",
				"file": {"id": "log4j2.xml", "url": "https://example.invalid/log4j2.xml"},
				"type": "log4j2-xml"
			}
		}
	}`))
	return c
}

func TestApplyLog4jMitigation_VersionGating(t *testing.T) {
	cases := map[string]bool{
		"1.17":   true,
		"1.17.1": true,
		"1.18":   true,
		"1.18.1": false,
		"1.18.2": false,
		"1.16.5": false,
		"1.20.2": false,
	}
	for id, wantApplied := range cases {
		t.Run(id, func(t *testing.T) {
			l := New(t.TempDir(), "java", VersionRequest{MinecraftVersion: id})
			l.resolved = &ResolvedVersion{ID: id}

			before := len(l.extraJvmArgs)
			if err := l.applyLog4jMitigation(t.TempDir(), vanillaWithLogging(id)); err != nil {
				t.Fatalf("applyLog4jMitigation failed: %v", err)
			}
			applied := len(l.extraJvmArgs) > before
			if applied != wantApplied {
				t.Errorf("id %s: applied = %v, want %v", id, applied, wantApplied)
			}
		})
	}
}

func TestApplyLog4jMitigation_NoLoggingSectionIsNoOp(t *testing.T) {
	vanilla, _ := gabs.ParseJSON([]byte(`{"id": "1.17.1"}`))
	l := New(t.TempDir(), "java", VersionRequest{MinecraftVersion: "1.17.1"})
	l.resolved = &ResolvedVersion{ID: "1.17.1"}

	if err := l.applyLog4jMitigation(t.TempDir(), vanilla); err != nil {
		t.Fatalf("applyLog4jMitigation failed: %v", err)
	}
	if len(l.extraJvmArgs) != 0 {
		t.Errorf("no logging.client section should add no jvm args, got %v", l.extraJvmArgs)
	}
}

func TestApplyLog4jMitigation_DownloadsConfigAndAddsArgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<Configuration/>"))
	}))
	defer srv.Close()

	vanilla, _ := gabs.ParseJSON([]byte(`{
		"id": "1.17.1",
		"logging": {
			"client": {
				"argument": "-Dlog4j.configurationFile=${path}",
				"file": {"id": "log4j2_17-111.xml", "url": "` + srv.URL + `"},
				"type": "log4j2-xml"
			}
		}
	}`))

	assetsDir := t.TempDir()
	l := New(t.TempDir(), "java", VersionRequest{MinecraftVersion: "1.17.1"})
	l.resolved = &ResolvedVersion{ID: "1.17.1"}

	if err := l.applyLog4jMitigation(assetsDir, vanilla); err != nil {
		t.Fatalf("applyLog4jMitigation failed: %v", err)
	}

	dest := filepath.Join(assetsDir, "log_configs", "log4j2_17-111.xml")
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected log4j config downloaded to %s: %v", dest, err)
	}

	found := false
	for _, arg := range l.extraJvmArgs {
		if arg == "-Dlog4j.configurationFile="+dest {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a substituted -Dlog4j.configurationFile arg, got %v", l.extraJvmArgs)
	}
	if l.extraJvmArgs[len(l.extraJvmArgs)-1] != "-Dlog4j2.formatMsgNoLookups=true" {
		t.Errorf("expected the formatMsgNoLookups arg appended last, got %v", l.extraJvmArgs)
	}
}

func TestInstallAssets_SkipsExistingObject(t *testing.T) {
	wantedObj := "hello asset bytes"
	wantedHash := hashOf(wantedObj)

	// InstallAssets hardcodes resourcesBaseURL, so exercise the
	// already-on-disk path instead: pre-seed the object and confirm it is
	// neither re-downloaded nor garbage collected.
	gameDir := t.TempDir()
	objectsDir := filepath.Join(gameDir, "assets", "objects", wantedHash[:2])
	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(objectsDir, wantedHash), []byte(wantedObj), 0644); err != nil {
		t.Fatalf("seed object: %v", err)
	}

	indexesDir := filepath.Join(gameDir, "assets", "indexes")
	if err := os.MkdirAll(indexesDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	indexJSON := `{"objects": {"minecraft/sounds/click.ogg": {"hash": "` + wantedHash + `", "size": 17}}}`
	if err := os.WriteFile(filepath.Join(indexesDir, "10.json"), []byte(indexJSON), 0644); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	vanilla, _ := gabs.ParseJSON([]byte(`{"id": "1.20.2", "assets": "10"}`))
	l := New(gameDir, "java", VersionRequest{MinecraftVersion: "1.20.2"})
	l.resolved = &ResolvedVersion{ID: "1.20.2", VanillaProfile: vanilla}

	if err := l.InstallAssets(); err != nil {
		t.Fatalf("InstallAssets failed: %v", err)
	}

	contents, err := os.ReadFile(filepath.Join(objectsDir, wantedHash))
	if err != nil || string(contents) != wantedObj {
		t.Errorf("pre-seeded object should survive untouched, got %q, err %v", contents, err)
	}
}

func TestCopyFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatalf("seed src: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "nested", "dest.txt")

	if err := copyFile(src, dest); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "payload" {
		t.Errorf("copyFile produced %q, err %v", got, err)
	}
}

func TestSha1OfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("hash me"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	got, err := sha1OfFile(path)
	if err != nil {
		t.Fatalf("sha1OfFile failed: %v", err)
	}
	if got != hashOf("hash me") {
		t.Errorf("sha1OfFile = %q, want %q", got, hashOf("hash me"))
	}
}
