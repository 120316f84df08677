package launchcore

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func seedJavaHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	binDir := filepath.Join(home, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "java"+executableExt()), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("seed java binary: %v", err)
	}
	return home
}

func TestDiscoverJava_PrefersJavaHome(t *testing.T) {
	home := seedJavaHome(t)
	t.Setenv("JAVA_HOME", home)
	t.Setenv("JRE_HOME", "")

	got, err := DiscoverJava(t.TempDir())
	if err != nil {
		t.Fatalf("DiscoverJava failed: %v", err)
	}
	want := javaBinary(home)
	if got != want {
		t.Errorf("DiscoverJava = %q, want %q", got, want)
	}
}

func TestDiscoverJava_FallsBackToJreHome(t *testing.T) {
	home := seedJavaHome(t)
	t.Setenv("JAVA_HOME", filepath.Join(t.TempDir(), "nonexistent"))
	t.Setenv("JRE_HOME", home)

	got, err := DiscoverJava(t.TempDir())
	if err != nil {
		t.Fatalf("DiscoverJava failed: %v", err)
	}
	if got != javaBinary(home) {
		t.Errorf("DiscoverJava = %q, want %q", got, javaBinary(home))
	}
}

func TestDiscoverJava_FindsEmbeddedRuntime(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("embeddedRuntime probes ProgramFiles(x86) on windows, not game_dir")
	}
	t.Setenv("JAVA_HOME", "")
	t.Setenv("JRE_HOME", "")

	gameDir := t.TempDir()
	jreDir := filepath.Join(gameDir, "runtime", "jre-x64", "jre-x64-name")
	binDir := filepath.Join(jreDir, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(binDir, "java"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("seed java: %v", err)
	}

	got, err := DiscoverJava(gameDir)
	if err != nil {
		t.Fatalf("DiscoverJava failed: %v", err)
	}
	if got != javaBinary(jreDir) {
		t.Errorf("DiscoverJava = %q, want %q", got, javaBinary(jreDir))
	}
}

func TestJavaExistsIn(t *testing.T) {
	home := seedJavaHome(t)
	if !javaExistsIn(home) {
		t.Error("expected javaExistsIn to find the seeded binary")
	}
	if javaExistsIn(t.TempDir()) {
		t.Error("an empty directory should not report a java binary")
	}
}

func TestJavaBinary(t *testing.T) {
	got := javaBinary(filepath.Join("opt", "java17"))
	want := filepath.Join("opt", "java17", "bin", "java"+executableExt())
	if got != want {
		t.Errorf("javaBinary = %q, want %q", got, want)
	}
}
