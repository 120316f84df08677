package launchcore

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Jeffail/gabs"

	"launchcore/internal/archive"
	"launchcore/internal/coordinate"
	"launchcore/internal/transport"
)

// runPostProcessor implements spec §4.8: execute install_profile.processors
// in declared order, substituting fields and library-coordinate references,
// and verifying each processor's declared outputs by SHA-1. Grounded on
// forge.go's runForgeProcessors/parseProcessorArgs/loadForgeData, refined
// against the original's output pre-check/skip-if-satisfied optimization.
func (l *Launcher) runPostProcessor() error {
	installProfile := l.resolved.InstallProfile
	if installProfile == nil || !installProfile.ExistsP("processors") {
		return nil
	}

	processors, err := installProfile.Path("processors").Children()
	if err != nil {
		return nil
	}

	fields := l.seedProcessorFields()
	if err := mergeInstallProfileData(installProfile, l.gameDir, fields); err != nil {
		return newErr(KindMalformedProfile, err, "install_profile.json data section")
	}

	type job struct {
		node      *gabs.Container
		skip      bool
		outputs   map[string]string
		satisfied bool
	}
	jobs := make([]job, 0, len(processors))
	allSatisfied := true

	for _, p := range processors {
		j := job{node: p}

		if sidesNode := p.Path("sides"); sidesNode.Data() != nil {
			sides, _ := sidesNode.Children()
			hasClient := false
			for _, s := range sides {
				if v, ok := s.Data().(string); ok && v == "client" {
					hasClient = true
				}
			}
			if !hasClient {
				j.skip = true
				jobs = append(jobs, j)
				continue
			}
		}

		j.outputs = declaredOutputs(p, fields, l.gameDir)
		j.satisfied = outputsSatisfied(j.outputs)
		if !j.satisfied {
			allSatisfied = false
		}
		jobs = append(jobs, j)
	}

	if allSatisfied {
		return nil
	}

	total := 0
	for _, j := range jobs {
		if !j.skip {
			total++
		}
	}

	current := 0
	for _, j := range jobs {
		if j.skip {
			continue
		}
		current++
		if j.satisfied {
			l.bus.publish(ProgressEvent{Task: TaskPostProcessing, Total: uint64(total), Current: uint64(current)})
			continue
		}

		if err := l.runProcessor(j.node, fields); err != nil {
			return err
		}

		if !outputsSatisfied(declaredOutputs(j.node, fields, l.gameDir)) {
			return newErr(KindProcessorFailed, nil, "processor output verification failed")
		}

		l.bus.publish(ProgressEvent{Task: TaskPostProcessing, Total: uint64(total), Current: uint64(current)})
	}

	return nil
}

func (l *Launcher) seedProcessorFields() map[string]string {
	mc := l.resolved.ID
	return map[string]string{
		"SIDE":              "client",
		"MINECRAFT_JAR":     filepath.Join(l.gameDir, "versions", mc, mc+".jar"),
		"ROOT":              l.gameDir,
		"MINECRAFT_VERSION": mc,
		"LIBRARY_DIR":       filepath.Join(l.gameDir, "libraries"),
	}
}

// mergeInstallProfileData resolves install_profile.data's client-side
// entries into fields, per spec §4.8's four forms.
func mergeInstallProfileData(installProfile *gabs.Container, gameDir string, fields map[string]string) error {
	if !installProfile.ExistsP("data") {
		return nil
	}
	data, err := installProfile.Path("data").ChildrenMap()
	if err != nil {
		return err
	}
	for key, entry := range data {
		value, _ := entry.Path("client").Data().(string)
		fields[key] = resolveDataValue(value, gameDir)
	}
	return nil
}

func resolveDataValue(value, gameDir string) string {
	switch {
	case strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]"):
		coord, err := coordinate.Parse(strings.Trim(value, "[]"))
		if err != nil {
			return value
		}
		return filepath.Join(gameDir, "libraries", filepath.FromSlash(coord.Path()))
	case strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'"):
		return strings.Trim(value, "'")
	case strings.HasPrefix(value, "/data/"):
		return filepath.Join(gameDir, filepath.FromSlash(value))
	default:
		return value
	}
}

// substituteToken resolves one processor argument/output token: an
// entire-token "{KEY}" reference into fields, an entire-token "[coord]"
// reference into an absolute library path, or a literal passthrough.
func substituteToken(token string, fields map[string]string, gameDir string) string {
	if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
		return fields[strings.Trim(token, "{}")]
	}
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		coord, err := coordinate.Parse(strings.Trim(token, "[]"))
		if err != nil {
			return token
		}
		return filepath.Join(gameDir, "libraries", filepath.FromSlash(coord.Path()))
	}
	return token
}

// declaredOutputs implements spec §4.8's output pre-check: the union of a
// processor's declared "outputs" map and any --output/--out-jar positional
// argument, both field-substituted. Outputs discovered only via argv carry
// no expected hash (existence-only check).
func declaredOutputs(processor *gabs.Container, fields map[string]string, gameDir string) map[string]string {
	outputs := map[string]string{}

	if processor.ExistsP("outputs") {
		if m, err := processor.Path("outputs").ChildrenMap(); err == nil {
			for k, v := range m {
				path := substituteToken(k, fields, gameDir)
				hash, _ := v.Data().(string)
				outputs[path] = substituteToken(hash, fields, gameDir)
			}
		}
	}

	if argItems, err := processor.Path("args").Children(); err == nil {
		for i, item := range argItems {
			s, ok := item.Data().(string)
			if !ok {
				continue
			}
			if (s == "--output" || s == "--out-jar") && i+1 < len(argItems) {
				if next, ok := argItems[i+1].Data().(string); ok {
					path := substituteToken(next, fields, gameDir)
					if _, exists := outputs[path]; !exists {
						outputs[path] = ""
					}
				}
			}
		}
	}

	return outputs
}

func outputsSatisfied(outputs map[string]string) bool {
	for path, expectedHash := range outputs {
		if path == "" {
			return false
		}
		if transport.IsHash(expectedHash) {
			actual, err := transport.SHA1File(path)
			if err != nil || actual != expectedHash {
				return false
			}
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// runProcessor spawns one processor's JVM invocation, per spec §4.8's
// execution steps.
func (l *Launcher) runProcessor(processor *gabs.Container, fields map[string]string) error {
	jarCoord, _ := processor.Path("jar").Data().(string)
	jarPath := substituteToken("["+jarCoord+"]", fields, l.gameDir)

	var classpath []string
	if items, err := processor.Path("classpath").Children(); err == nil {
		for _, item := range items {
			coordStr, _ := item.Data().(string)
			classpath = append(classpath, substituteToken("["+coordStr+"]", fields, l.gameDir))
		}
	}
	classpath = append(classpath, jarPath)

	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}

	mainClass, err := archive.MainClass(jarPath)
	if err != nil {
		return newErr(KindArchiveCorrupt, err, "read processor main class from %s", jarPath)
	}

	var args []string
	if items, err := processor.Path("args").Children(); err == nil {
		for _, item := range items {
			s, _ := item.Data().(string)
			args = append(args, substituteToken(s, fields, l.gameDir))
		}
	}

	cmdArgs := append([]string{"-cp", strings.Join(classpath, sep), mainClass}, args...)
	cmd := exec.Command(l.javaExecutable, cmdArgs...)
	cmd.Dir = l.gameDir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return newErr(KindProcessorFailed, err, "processor %s exited: %s", jarCoord, out)
	}
	return nil
}
