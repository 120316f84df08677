package launchcore

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DiscoverJava probes for a usable java executable the way env.go's
// _findJavaDir does: JAVA_HOME, then JRE_HOME, then a Minecraft-bundled
// runtime under gameDir, then "which"/"where" as a last resort. It returns
// the absolute path to the java binary, not a directory, since that's what
// PostProcessor and LaunchAssembler both spawn directly.
//
// The distilled spec takes java_executable as an opaque constructor
// argument and says nothing about how a caller should find one; this is
// the supplemented convenience described in SPEC_FULL.md.
func DiscoverJava(gameDir string) (string, error) {
	if dir := os.Getenv("JAVA_HOME"); dir != "" && javaExistsIn(dir) {
		return javaBinary(dir), nil
	}
	if dir := os.Getenv("JRE_HOME"); dir != "" && javaExistsIn(dir) {
		return javaBinary(dir), nil
	}
	if dir := embeddedRuntime(gameDir); dir != "" {
		return javaBinary(dir), nil
	}

	var which *exec.Cmd
	if runtime.GOOS == "windows" {
		which = exec.Command("where", "java")
	} else {
		which = exec.Command("sh", "-c", "which java")
	}
	out, err := which.Output()
	if err != nil {
		return "", newErr(KindIO, err, "no java executable found: JAVA_HOME/JRE_HOME unset, no bundled runtime, and %s failed", which.Args)
	}

	// "which java" -> .../jre/bin/java ; strip bin/java to get the home dir,
	// then reattach bin/java so the returned path is always a full path to
	// the binary rather than a directory.
	javaPath := strings.TrimSpace(string(out))
	dir := filepath.Dir(filepath.Dir(javaPath))
	if !javaExistsIn(dir) {
		return "", newErr(KindIO, nil, "no java executable found")
	}
	return javaBinary(dir), nil
}

func javaBinary(javaHome string) string {
	return filepath.Join(javaHome, "bin", "java"+executableExt())
}

func executableExt() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

func javaExistsIn(javaHome string) bool {
	_, err := os.Stat(filepath.Join(javaHome, "bin", "java"+executableExt()))
	return err == nil
}

// embeddedRuntime looks for the JRE the official Minecraft launcher bundles
// alongside game_dir/runtime/jre-x64 (or, on Windows, the Minecraft
// install under Program Files), exactly as env.go's
// _getEmbeddedMinecraftRuntime does.
func embeddedRuntime(gameDir string) string {
	var base string
	if runtime.GOOS == "windows" {
		base = filepath.Join(os.Getenv("ProgramFiles(x86)"), "Minecraft", "runtime", "jre-x64")
	} else {
		base = filepath.Join(gameDir, "runtime", "jre-x64")
	}

	f, err := os.Open(base)
	if err != nil {
		return ""
	}
	defer f.Close()

	names, err := f.Readdirnames(5)
	if err != nil {
		return ""
	}
	for _, name := range names {
		dir := filepath.Join(base, name)
		if javaExistsIn(dir) {
			return dir
		}
	}
	return ""
}
