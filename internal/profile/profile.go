// Package profile reads the untyped JSON trees (version manifests,
// version profiles, install profiles, asset indexes) the way util.go and
// forge.go do with gabs, surfacing only the fields named in spec §3-§4.
// Per the spec's design notes (§9), this core treats those documents as
// dynamic trees and validates lazily at the point of access rather than
// eagerly binding them to static structs.
package profile

import (
	"fmt"
	"os"

	"github.com/Jeffail/gabs"

	"launchcore/internal/rules"
)

// Load parses a JSON file on disk into a gabs container.
func Load(path string) (*gabs.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return gabs.ParseJSON(data)
}

// GetString returns the string at path, and whether it was present and of
// the right type.
func GetString(root *gabs.Container, path string) (string, bool) {
	if root == nil || !root.ExistsP(path) {
		return "", false
	}
	v, ok := root.Path(path).Data().(string)
	return v, ok
}

// GetBool returns the bool at path, and whether it was present and of the
// right type.
func GetBool(root *gabs.Container, path string) (bool, bool) {
	if root == nil || !root.ExistsP(path) {
		return false, false
	}
	v, ok := root.Path(path).Data().(bool)
	return v, ok
}

// RequireString returns the string at path or an error describing the
// missing/malformed field, for callers that consider it mandatory.
func RequireString(root *gabs.Container, path string) (string, error) {
	v, ok := GetString(root, path)
	if !ok {
		return "", fmt.Errorf("required string field %q is missing or not a string", path)
	}
	return v, nil
}

// RuleArrayAt parses the {action, os, features} rule array found at path
// (relative to root) into []rules.Rule.
func RuleArrayAt(root *gabs.Container, path string) []rules.Rule {
	if root == nil || !root.ExistsP(path) {
		return nil
	}
	children, err := root.Path(path).Children()
	if err != nil {
		return nil
	}
	return parseRuleContainers(children)
}

func parseRuleContainers(children []*gabs.Container) []rules.Rule {
	var out []rules.Rule
	for _, rc := range children {
		r := rules.Rule{}
		if action, ok := rc.Path("action").Data().(string); ok {
			r.Action = action
		}
		if name, ok := rc.Path("os.name").Data().(string); ok {
			r.OSName = name
		}
		if rc.ExistsP("features") {
			if fm, ok := rc.Path("features").Data().(map[string]any); ok {
				r.Features = fm
			}
		}
		out = append(out, r)
	}
	return out
}

// Library is one entry of a version profile's or install profile's
// "libraries" array, normalized across the modern {downloads:{artifact}}
// schema and the legacy {url, clientreq, serverreq} schema forge.go also
// handles.
type Library struct {
	Name           string
	Rules          []rules.Rule
	ArtifactURL    string
	ArtifactSHA1   string
	ArtifactPath   string
	Classifiers    map[string]ClassifierArtifact
	HasLegacyFlags bool
	ClientReq      bool
	ServerReq      bool
	LegacyBaseURL  string
	ExtractExclude []string
}

// ClassifierArtifact is one entry of a library's downloads.classifiers
// map (natives-<os> JARs, sources, etc.).
type ClassifierArtifact struct {
	URL  string
	SHA1 string
	Path string
}

// ParseLibraries extracts every library entry from a profile or install
// profile's "libraries" array.
func ParseLibraries(root *gabs.Container) ([]Library, error) {
	if root == nil || !root.ExistsP("libraries") {
		return nil, nil
	}
	children, err := root.Path("libraries").Children()
	if err != nil {
		return nil, fmt.Errorf("libraries is not an array: %w", err)
	}

	out := make([]Library, 0, len(children))
	for _, lc := range children {
		lib, err := parseLibrary(lc)
		if err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	return out, nil
}

func parseLibrary(lc *gabs.Container) (Library, error) {
	name, ok := lc.Path("name").Data().(string)
	if !ok {
		return Library{}, fmt.Errorf("library entry missing name")
	}

	lib := Library{Name: name, Rules: parseRuleContainersAt(lc, "rules")}

	if lc.ExistsP("downloads.artifact") {
		lib.ArtifactURL, _ = lc.Path("downloads.artifact.url").Data().(string)
		lib.ArtifactSHA1, _ = lc.Path("downloads.artifact.sha1").Data().(string)
		lib.ArtifactPath, _ = lc.Path("downloads.artifact.path").Data().(string)
	}

	if lc.ExistsP("downloads.classifiers") {
		classifiers, err := lc.Path("downloads.classifiers").ChildrenMap()
		if err == nil {
			lib.Classifiers = make(map[string]ClassifierArtifact, len(classifiers))
			for key, cc := range classifiers {
				lib.Classifiers[key] = ClassifierArtifact{
					URL:  strOr(cc, "url"),
					SHA1: strOr(cc, "sha1"),
					Path: strOr(cc, "path"),
				}
			}
		}
	}

	if cr, ok := lc.Path("clientreq").Data().(bool); ok {
		lib.HasLegacyFlags = true
		lib.ClientReq = cr
	}
	if sr, ok := lc.Path("serverreq").Data().(bool); ok {
		lib.HasLegacyFlags = true
		lib.ServerReq = sr
	}
	if url, ok := lc.Path("url").Data().(string); ok {
		lib.LegacyBaseURL = url
	}

	if lc.ExistsP("extract.exclude") {
		excludes, _ := lc.Path("extract.exclude").Children()
		for _, e := range excludes {
			if s, ok := e.Data().(string); ok {
				lib.ExtractExclude = append(lib.ExtractExclude, s)
			}
		}
	}

	return lib, nil
}

func strOr(c *gabs.Container, path string) string {
	v, _ := c.Path(path).Data().(string)
	return v
}

func parseRuleContainersAt(root *gabs.Container, path string) []rules.Rule {
	if !root.ExistsP(path) {
		return nil
	}
	children, err := root.Path(path).Children()
	if err != nil {
		return nil
	}
	return parseRuleContainers(children)
}

// Argument is one entry of a modern profile's arguments.jvm/arguments.game
// array: either a bare literal value, or a {rules, value} object whose
// value is a string or array of strings.
type Argument struct {
	Rules  []rules.Rule
	Values []string
}

// ParseArguments extracts the arguments.<key> array (key is "jvm" or
// "game") from a modern-schema profile.
func ParseArguments(root *gabs.Container, key string) ([]Argument, error) {
	path := "arguments." + key
	if root == nil || !root.ExistsP(path) {
		return nil, nil
	}
	children, err := root.Path(path).Children()
	if err != nil {
		return nil, fmt.Errorf("%s is not an array: %w", path, err)
	}

	out := make([]Argument, 0, len(children))
	for _, ac := range children {
		if s, ok := ac.Data().(string); ok {
			out = append(out, Argument{Values: []string{s}})
			continue
		}

		arg := Argument{Rules: parseRuleContainersAt(ac, "rules")}
		valueNode := ac.Path("value")
		if s, ok := valueNode.Data().(string); ok {
			arg.Values = []string{s}
		} else if items, err := valueNode.Children(); err == nil {
			for _, it := range items {
				if s, ok := it.Data().(string); ok {
					arg.Values = append(arg.Values, s)
				}
			}
		}
		out = append(out, arg)
	}
	return out, nil
}
