// Package launchcore is the core of a Minecraft game-launcher: version
// resolution, content-addressed asset/library synchronization, the
// Forge/NeoForge post-processor driver, and launch-argument assembly.
//
// Everything here is owned by one Launcher per play session (spec §3's
// ownership note): a Launcher exclusively owns its ResolvedVersion, argv
// accumulator, auth record, feature map and progress broadcaster, and its
// install/launch methods are not safe to call concurrently with each
// other on the same Launcher.
package launchcore

import (
	"context"
	"os/exec"
	"time"

	"launchcore/internal/installledger"
)

// QuickPlayKind selects which 1.20+ quick-play entry point to pass on the
// command line.
type QuickPlayKind int

const (
	QuickPlayNone QuickPlayKind = iota
	QuickPlayPath
	QuickPlaySingleplayer
	QuickPlayMultiplayer
	QuickPlayRealms
)

// Launcher is the entry point for installing and launching one
// VersionRequest. Construct with New, configure with the Set*/Add*
// methods, then call InstallVersion, InstallLibraries and InstallAssets
// (in that order) before Command or Launch.
type Launcher struct {
	gameDir        string
	javaExecutable string
	request        VersionRequest

	resolved *ResolvedVersion

	auth Auth

	extraJvmArgs  []string
	extraGameArgs []string

	hasCustomResolution bool
	customWidth         int
	customHeight        int
	fullscreen          bool
	demo                bool

	quickPlayKind  QuickPlayKind
	quickPlayValue string

	bus    *ProgressBus
	ledger *installledger.Ledger
}

// New constructs a Launcher for one game_dir/java_executable/VersionRequest
// triple, per spec §6. The returned Launcher has no installed state until
// InstallVersion succeeds.
func New(gameDir, javaExecutable string, request VersionRequest) *Launcher {
	return &Launcher{
		gameDir:        gameDir,
		javaExecutable: javaExecutable,
		request:        request,
		auth:           OfflineAuth("Player"),
		bus:            NewProgressBus(),
	}
}

// SetAuth replaces the launcher's credential record.
func (l *Launcher) SetAuth(auth Auth) {
	l.auth = auth
}

// AddJvmArg appends one literal JVM argument, passed through field
// substitution but never split or deduplicated (spec §4.9 source array 1).
func (l *Launcher) AddJvmArg(arg string) {
	l.extraJvmArgs = append(l.extraJvmArgs, arg)
}

// AddGameArg appends one literal game argument (spec §4.9 source array 6).
func (l *Launcher) AddGameArg(arg string) {
	l.extraGameArgs = append(l.extraGameArgs, arg)
}

// SetCustomResolution requests --width/--height in the assembled argv.
func (l *Launcher) SetCustomResolution(width, height int) {
	l.hasCustomResolution = true
	l.customWidth = width
	l.customHeight = height
}

// SetFullscreen toggles the --fullscreen tail argument.
func (l *Launcher) SetFullscreen(fullscreen bool) {
	l.fullscreen = fullscreen
}

// SetDemoUser toggles the --demo tail argument.
func (l *Launcher) SetDemoUser(demo bool) {
	l.demo = demo
}

// SetQuickPlay requests one of the 1.20+ quick-play entry points.
func (l *Launcher) SetQuickPlay(kind QuickPlayKind, value string) {
	l.quickPlayKind = kind
	l.quickPlayValue = value
}

// OnProgress returns a fresh subscription that will see every
// ProgressEvent emitted from this point forward.
func (l *Launcher) OnProgress() ProgressSubscription {
	return l.bus.Subscribe()
}

// AttachLedger associates a sqlite-backed install history with this
// Launcher. Once attached, every successful InstallVersion/
// InstallLibraries/InstallAssets call records its completion; callers can
// consult the Ledger independently (e.g. to skip a redundant install) or
// just use it as a diagnostic log of what has already run.
func (l *Launcher) AttachLedger(ledger *installledger.Ledger) {
	l.ledger = ledger
}

// recordStage is a no-op unless a Ledger is attached.
func (l *Launcher) recordStage(stage installledger.Stage) {
	if l.ledger == nil {
		return
	}
	_ = l.ledger.Record(l.resolved.ID, l.request.Loader.String(), stage, time.Now().Unix())
}

// requireInstalled returns NotInstalled unless install_version has
// already populated resolved, per spec §5's ordering guarantee.
func (l *Launcher) requireInstalled() error {
	if l.resolved == nil {
		return newErr(KindNotInstalled, nil, "install_version has not completed for %s", l.request.MinecraftVersion)
	}
	return nil
}

// Command assembles argv without spawning it, per spec §6's command().
func (l *Launcher) Command(ctx context.Context) (*exec.Cmd, error) {
	if err := l.requireInstalled(); err != nil {
		return nil, err
	}
	argv, err := l.assembleArgv()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, l.javaExecutable, argv...)
	cmd.Dir = l.gameDir
	return cmd, nil
}

// Launch assembles argv, spawns the child and returns it immediately;
// ownership of the process passes to the caller, who is responsible for
// waiting on it and handling its stdout/stderr (spec §1, §4.9, §9).
func (l *Launcher) Launch(ctx context.Context) (*exec.Cmd, error) {
	cmd, err := l.Command(ctx)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, newErr(KindIO, err, "spawn %s", l.javaExecutable)
	}
	return cmd, nil
}
