// Package rules evaluates the {action, os, features} rule arrays that gate
// libraries and launch arguments, per spec §4.3.
package rules

import "runtime"

// Rule is one {action, os?, features?} entry.
type Rule struct {
	Action   string // "allow" or "disallow"
	OSName   string // empty means "any OS"
	Features map[string]any
}

// Context is the evaluation environment: the host OS (normalized) and the
// caller's feature flags.
type Context struct {
	OS       string
	Features map[string]any
}

// NormalizeOS maps a Go runtime.GOOS-style name to the Minecraft-profile
// OS name used in rule {os:{name}} blocks: windows, osx (from macos/darwin),
// linux, or the host name verbatim for anything else.
func NormalizeOS(goos string) string {
	switch goos {
	case "windows":
		return "windows"
	case "darwin", "macos":
		return "osx"
	case "linux":
		return "linux"
	default:
		return goos
	}
}

// HostContext returns a Context for the running process.
func HostContext(features map[string]any) Context {
	return Context{OS: NormalizeOS(runtime.GOOS), Features: features}
}

// Evaluate implements spec §4.3's running-boolean semantics: start from the
// default, then let each rule in order override the decision if it applies.
// An absent (nil) rule list always evaluates to true.
func Evaluate(rules []Rule, ctx Context) bool {
	if len(rules) == 0 {
		return true
	}

	decision := false
	for _, r := range rules {
		applies := r.OSName == "" || r.OSName == ctx.OS

		switch r.Action {
		case "allow":
			if !applies {
				continue
			}
			if !featuresMatch(r.Features, ctx.Features) {
				continue
			}
			decision = true
		case "disallow":
			if applies {
				decision = false
			}
		}
	}
	return decision
}

func featuresMatch(want map[string]any, have map[string]any) bool {
	if len(want) == 0 {
		return true
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

// LegacyGate implements the supplemented feature described in SPEC_FULL.md:
// pre-modern Forge libraries carry clientreq/serverreq booleans instead of
// a rules array. It is consulted only when rules is empty and one of the
// two flags is present.
func LegacyGate(clientreq, serverreq, haveEither bool) bool {
	if !haveEither {
		return true
	}
	return clientreq
}
