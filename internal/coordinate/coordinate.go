// Package coordinate parses Maven-style library coordinates the way
// maven.go's MavenModule and forge.go's artifactToPath do, unified into a
// single type per spec §3's LibraryCoordinate.
package coordinate

import (
	"fmt"
	"path"
	"strings"
)

// Coordinate is a parsed "group:artifact:version[:classifier][@ext]"
// string.
type Coordinate struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Ext        string
}

// Parse splits a Maven coordinate string into its components. The version
// segment may carry a trailing "@ext" (alternate file extension) and/or a
// ":classifier" suffix, exactly as forge.go's artifactToPath handles it.
func Parse(s string) (Coordinate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 3 {
		return Coordinate{}, fmt.Errorf("coordinate %q requires group:artifact:version", s)
	}

	c := Coordinate{Group: parts[0], Artifact: parts[1], Ext: "jar"}
	vsn := parts[2]

	if strings.Contains(vsn, "@") {
		p := strings.SplitN(vsn, "@", 2)
		vsn = p[0]
		c.Ext = p[1]
	}
	if strings.Contains(vsn, ":") {
		p := strings.SplitN(vsn, ":", 2)
		vsn = p[0]
		c.Classifier = p[1]
	}
	c.Version = vsn
	return c, nil
}

// Path returns the library's relative path under a libraries/ root:
// group-with-dots-as-separators/artifact/version/artifact-version[-classifier].ext
func (c Coordinate) Path() string {
	groupPath := path.Join(strings.Split(c.Group, ".")...)
	filename := fmt.Sprintf("%s-%s", c.Artifact, c.Version)
	if c.Classifier != "" {
		filename += "-" + c.Classifier
	}
	filename += "." + c.Ext
	return path.Join(groupPath, c.Artifact, c.Version, filename)
}

// String reconstructs the canonical coordinate string.
func (c Coordinate) String() string {
	base := fmt.Sprintf("%s:%s:%s", c.Group, c.Artifact, c.Version)
	if c.Classifier != "" {
		base += ":" + c.Classifier
	}
	if c.Ext != "" && c.Ext != "jar" {
		base += "@" + c.Ext
	}
	return base
}
