package launchcore

import (
	"os"
	"path/filepath"
	"testing"

	"launchcore/internal/profile"
	"launchcore/internal/rules"
)

func TestBaseURLForLoader(t *testing.T) {
	cases := map[Loader]string{
		LoaderNone:     "https://libraries.minecraft.net/",
		LoaderForge:    "https://maven.creeperhost.net/",
		LoaderNeoForge: "https://maven.neoforged.net/releases/",
		LoaderFabric:   "https://maven.fabricmc.net/",
		LoaderQuilt:    "https://maven.quiltmc.org/repository/release/",
	}
	for loader, want := range cases {
		if got := baseURLForLoader(loader); got != want {
			t.Errorf("baseURLForLoader(%v) = %q, want %q", loader, got, want)
		}
	}
}

func TestPlanLibraries_SkipsExisting(t *testing.T) {
	gameDir := t.TempDir()
	relPath := filepath.Join("com", "mojang", "brigadier", "1.0.18", "brigadier-1.0.18.jar")
	fullPath := filepath.Join(gameDir, "libraries", relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(fullPath, []byte("x"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	libs := []profile.Library{{Name: "com.mojang:brigadier:1.0.18"}}
	planned, err := planLibraries(gameDir, libs, "https://libraries.minecraft.net/", rules.Context{OS: "linux"})
	if err != nil {
		t.Fatalf("planLibraries failed: %v", err)
	}
	if len(planned) != 0 {
		t.Errorf("an already-present library should not be planned, got %+v", planned)
	}
}

func TestPlanLibraries_SkipsDisallowedByRules(t *testing.T) {
	gameDir := t.TempDir()
	libs := []profile.Library{{
		Name:  "org.lwjgl:lwjgl:3.3.1:natives-windows",
		Rules: []rules.Rule{{Action: "allow", OSName: "windows"}},
	}}
	planned, err := planLibraries(gameDir, libs, "https://libraries.minecraft.net/", rules.Context{OS: "linux"})
	if err != nil {
		t.Fatalf("planLibraries failed: %v", err)
	}
	if len(planned) != 0 {
		t.Errorf("a windows-only library should be skipped on linux, got %+v", planned)
	}
}

func TestPlanLibraries_UsesArtifactURLWhenPresent(t *testing.T) {
	gameDir := t.TempDir()
	libs := []profile.Library{{
		Name:         "com.mojang:brigadier:1.0.18",
		ArtifactURL:  "https://libraries.minecraft.net/com/mojang/brigadier/1.0.18/brigadier-1.0.18.jar",
		ArtifactSHA1: "4d02ff6520ed5598c767a4d5ee35e5d78b7a8a5e",
		ArtifactPath: "com/mojang/brigadier/1.0.18/brigadier-1.0.18.jar",
	}}
	planned, err := planLibraries(gameDir, libs, "https://fallback.example.com/", rules.Context{OS: "linux"})
	if err != nil {
		t.Fatalf("planLibraries failed: %v", err)
	}
	if len(planned) != 1 || planned[0].URL != libs[0].ArtifactURL {
		t.Errorf("expected artifact url to win over base url, got %+v", planned)
	}
}

func TestPlanLibraries_FallsBackToBaseURL(t *testing.T) {
	gameDir := t.TempDir()
	libs := []profile.Library{{Name: "com.mojang:brigadier:1.0.18"}}
	planned, err := planLibraries(gameDir, libs, "https://libraries.minecraft.net/", rules.Context{OS: "linux"})
	if err != nil {
		t.Fatalf("planLibraries failed: %v", err)
	}
	want := "https://libraries.minecraft.net/com/mojang/brigadier/1.0.18/brigadier-1.0.18.jar"
	if len(planned) != 1 || planned[0].URL != want {
		t.Errorf("expected %q, got %+v", want, planned)
	}
}

func TestDedupeByPath(t *testing.T) {
	libs := []plannedLibrary{
		{Name: "a", Path: "a.jar"},
		{Name: "b-dup", Path: "a.jar"},
		{Name: "c", Path: "b.jar"},
	}
	deduped := dedupeByPath(libs)
	if len(deduped) != 2 {
		t.Fatalf("expected 2 unique paths, got %d: %+v", len(deduped), deduped)
	}
	if deduped[0].Name != "a" {
		t.Errorf("dedupe should keep the first occurrence, got %+v", deduped[0])
	}
}

func TestPackSignatureLen(t *testing.T) {
	// Build "<payload><4-byte-LE-length><SIGN>" like forge.go's trailer.
	payload := []byte("pack200 bytes here")
	sigLen := uint32(5)
	trailer := []byte{byte(sigLen), 0, 0, 0}
	data := append(append([]byte{}, payload...), append(trailer, []byte("SIGN")...)...)

	got, err := packSignatureLen(data)
	if err != nil {
		t.Fatalf("packSignatureLen failed: %v", err)
	}
	if got != int64(sigLen)+8 {
		t.Errorf("packSignatureLen = %d, want %d", got, int64(sigLen)+8)
	}
}

func TestPackSignatureLen_MissingTrailer(t *testing.T) {
	if _, err := packSignatureLen([]byte("no trailer here")); err == nil {
		t.Fatal("expected an error when the SIGN trailer is absent")
	}
}
