package launchcore

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"

	"launchcore/internal/profile"
	"launchcore/internal/rules"
)

const (
	launcherName    = "launchcore"
	launcherVersion = "1.0"
)

// assembleArgv implements spec §4.9: build the java argv from the merged
// profile, features, auth and classpath, then run one final field
// substitution pass.
func (l *Launcher) assembleArgv() ([]string, error) {
	vanilla := l.resolved.VanillaProfile
	modded := l.resolved.ModdedProfile

	classpathPaths, err := l.classpathEntries()
	if err != nil {
		return nil, err
	}
	if l.resolved.Loader == LoaderForge && l.resolved.LegacyForge {
		universal := filepath.Join(l.moddedVersionDir(l.resolved.ModdedID), l.resolved.ModdedID+".jar")
		classpathPaths = append(classpathPaths, universal)
	}
	versionJar := filepath.Join(l.gameDir, "versions", l.resolved.ID, l.resolved.ID+".jar")
	classpathPaths = append(classpathPaths, versionJar)

	fields, err := l.buildFields(classpathPaths)
	if err != nil {
		return nil, err
	}

	ctx := rules.Context{OS: rules.NormalizeOS(runtime.GOOS), Features: l.featureMap()}

	var argv []string

	// 1. user-supplied JVM args, verbatim.
	argv = append(argv, l.extraJvmArgs...)

	// 2/3. profile + modded JVM argument arrays, or the legacy fallback.
	jvmArgs, err := resolveArguments(vanilla, "jvm", ctx)
	if err != nil {
		return nil, err
	}
	if len(jvmArgs) == 0 {
		jvmArgs = []string{"-cp", "${classpath}"}
	}
	argv = append(argv, jvmArgs...)

	if modded != nil {
		moddedJvmArgs, err := resolveArguments(modded, "jvm", ctx)
		if err != nil {
			return nil, err
		}
		argv = append(argv, moddedJvmArgs...)
	}

	// 4. fixed extras, deduplicated by space-split token.
	fixedExtras := []string{
		"-XX:-UseAdaptiveSizePolicy",
		"-XX:-OmitStackTraceInFastThrow",
		"-Dfml.ignoreInvalidMinecraftCertificates=true",
		"-Dfml.ignorePatchDiscrepancies=true",
		"-Djava.library.path=${natives_directory}",
	}
	argv = appendDeduped(argv, fixedExtras)

	// 5. main class.
	mainClass, ok := profile.GetString(modded, "mainClass")
	if !ok {
		mainClass, err = profile.RequireString(vanilla, "mainClass")
		if err != nil {
			return nil, newErr(KindMalformedProfile, err, "profile missing mainClass")
		}
	}
	argv = append(argv, mainClass)

	// 6. user-supplied game args, verbatim.
	argv = append(argv, l.extraGameArgs...)

	// 7. game arguments: modern arrays, or legacy minecraftArguments.
	gameArgs, err := l.resolveGameArguments(vanilla, modded, ctx)
	if err != nil {
		return nil, err
	}
	argv = appendDeduped(argv, gameArgs)

	// 8. feature-conditional tail, deduplicated the same way as the fixed
	// extras and game args: a modern profile's own arguments.game rule
	// entries frequently already emit --demo/--width/--quickPlay* for an
	// active feature, and this must not double them up.
	argv = appendDeduped(argv, l.featureTail())

	substituted := make([]string, len(argv))
	for i, tok := range argv {
		substituted[i] = substituteFields(tok, fields)
	}
	return substituted, nil
}

// resolveArguments evaluates one modern arguments.<key> array against ctx,
// returning the flattened, rule-allowed values in order.
func resolveArguments(root *gabs.Container, key string, ctx rules.Context) ([]string, error) {
	args, err := profile.ParseArguments(root, key)
	if err != nil {
		return nil, newErr(KindMalformedProfile, err, "arguments.%s", key)
	}
	var out []string
	for _, a := range args {
		if !rules.Evaluate(a.Rules, ctx) {
			continue
		}
		out = append(out, a.Values...)
	}
	return out, nil
}

// resolveGameArguments implements spec §4.9 source array 7: the modern
// arguments.game arrays (vanilla + modded) when present, else the legacy
// minecraftArguments string (space-split), preferring the modded profile's
// when both exist.
func (l *Launcher) resolveGameArguments(vanilla, modded *gabs.Container, ctx rules.Context) ([]string, error) {
	vanillaGame, err := resolveArguments(vanilla, "game", ctx)
	if err != nil {
		return nil, err
	}
	var moddedGame []string
	if modded != nil {
		moddedGame, err = resolveArguments(modded, "game", ctx)
		if err != nil {
			return nil, err
		}
	}
	if len(vanillaGame) > 0 || len(moddedGame) > 0 {
		return append(vanillaGame, moddedGame...), nil
	}

	if modded != nil {
		if s, ok := profile.GetString(modded, "minecraftArguments"); ok {
			return strings.Fields(s), nil
		}
	}
	if s, ok := profile.GetString(vanilla, "minecraftArguments"); ok {
		return strings.Fields(s), nil
	}
	return nil, nil
}

// appendDeduped splits each candidate on spaces and appends it to argv
// only if no resulting token is already present, per spec §4.9's
// deduplication rule for fixed extras and game args.
func appendDeduped(argv []string, candidates []string) []string {
	present := make(map[string]bool, len(argv))
	for _, a := range argv {
		present[a] = true
	}
	for _, c := range candidates {
		for _, tok := range strings.Fields(c) {
			if present[tok] {
				continue
			}
			present[tok] = true
			argv = append(argv, tok)
		}
	}
	return argv
}

// featureMap is the feature set consulted by rule-guarded argument
// objects: custom resolution, demo mode and quick-play variants.
func (l *Launcher) featureMap() map[string]any {
	return map[string]any{
		"has_custom_resolution":      l.hasCustomResolution,
		"is_demo_user":               l.demo,
		"has_quick_play_support":     l.quickPlayKind != QuickPlayNone,
		"is_quick_play_singleplayer": l.quickPlayKind == QuickPlaySingleplayer,
		"is_quick_play_multiplayer":  l.quickPlayKind == QuickPlayMultiplayer,
		"is_quick_play_realms":       l.quickPlayKind == QuickPlayRealms,
	}
}

// featureTail implements spec §4.9 source array 8.
func (l *Launcher) featureTail() []string {
	var tail []string
	if l.demo {
		tail = append(tail, "--demo")
	}
	if l.hasCustomResolution {
		tail = append(tail, "--width", strconv.Itoa(l.customWidth), "--height", strconv.Itoa(l.customHeight))
	}
	if l.fullscreen {
		tail = append(tail, "--fullscreen")
	}
	switch l.quickPlayKind {
	case QuickPlayPath:
		tail = append(tail, "--quickPlayPath", l.quickPlayValue)
	case QuickPlaySingleplayer:
		tail = append(tail, "--quickPlaySingleplayer", l.quickPlayValue)
	case QuickPlayMultiplayer:
		tail = append(tail, "--quickPlayMultiplayer", l.quickPlayValue)
	case QuickPlayRealms:
		tail = append(tail, "--quickPlayRealms", l.quickPlayValue)
	}
	return tail
}

// buildFields computes the complete ${name} substitution table, per spec
// §4.9.
func (l *Launcher) buildFields(classpathPaths []string) (map[string]string, error) {
	vanilla := l.resolved.VanillaProfile

	sep := ":"
	if runtime.GOOS == "windows" {
		sep = ";"
	}

	_, minor, _, err := parseMCVersion(l.resolved.ID)
	if err != nil {
		return nil, newErr(KindMalformedProfile, err, "parse minecraft version %q", l.resolved.ID)
	}
	nativesDir := filepath.Join(l.gameDir, "natives")
	if minor >= 19 {
		nativesDir = l.gameDir
	}

	launcherVsn := launcherVersion
	if v, ok := profile.GetString(vanilla, "minimumLauncherVersion"); ok {
		launcherVsn = v
	}

	assetsID, _ := profile.GetString(vanilla, "assets")
	gameAssets := filepath.Join(l.gameDir, "assets")
	if assetsID == "legacy" || assetsID == "pre-1.6" {
		gameAssets = filepath.Join(l.gameDir, "resources")
	}

	versionType, _ := profile.GetString(vanilla, "type")

	return map[string]string{
		"classpath":           strings.Join(classpathPaths, sep),
		"classpath_separator": sep,
		"natives_directory":   nativesDir,
		"library_directory":   filepath.Join(l.gameDir, "libraries"),
		"launcher_name":       launcherName,
		"launcher_version":    launcherVsn,
		"auth_player_name":    l.auth.Username,
		"version_name":        l.resolved.ID,
		"game_directory":      l.gameDir,
		"assets_root":         filepath.Join(l.gameDir, "assets"),
		"assets_index_name":   assetsID,
		"auth_uuid":           l.auth.UUID,
		"auth_access_token":   l.auth.AccessToken,
		"auth_session":        l.auth.AccessToken,
		"user_type":           l.auth.UserType,
		"user_properties":     l.auth.UserProperties,
		"version_type":        versionType,
		"game_assets":         gameAssets,
		"clientid":            "0",
		"auth_xuid":           "0",
	}, nil
}

// substituteFields replaces every ${name} occurrence in tok with fields'
// value, per spec §4.9's final pass. Running it again is a no-op since no
// "${...}" token remains for any key present in fields (invariant 7, §8).
func substituteFields(tok string, fields map[string]string) string {
	for name, value := range fields {
		tok = strings.ReplaceAll(tok, "${"+name+"}", value)
	}
	return tok
}
