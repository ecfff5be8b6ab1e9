// Package version describes the running uidlist build.
package version

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
)

// Set at build time with -ldflags "-X github.com/ProtonMail/uidlist/version.tag=v1.2.3".
var tag = "v0.1.0"

type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%v.%v.%v", v.Major, v.Minor, v.Patch)
}

// Parse reads a version of the form [v]MAJOR.MINOR.PATCH. Anything after the patch number
// (a pre-release or build suffix) is ignored.
func Parse(s string) (Version, error) {
	parts := strings.SplitN(strings.TrimPrefix(s, "v"), ".", 3)
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}

	parts[2], _, _ = strings.Cut(parts[2], "-")
	parts[2], _, _ = strings.Cut(parts[2], "+")

	var nums [3]int

	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}

		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

type Info struct {
	Name      string
	Version   Version
	Revision  string
	GoVersion string
}

func (i Info) String() string {
	s := fmt.Sprintf("%v %v", i.Name, i.Version)

	if i.Revision != "" {
		s += fmt.Sprintf(" (%v)", i.Revision)
	}

	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}

	return s
}

// Current returns the version of this binary.
func Current() Info {
	info := Info{Name: "uidlist"}

	if v, err := Parse(tag); err == nil {
		info.Version = v
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	info.GoVersion = build.GoVersion

	for _, setting := range build.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			info.Revision = setting.Value[:12]
		}
	}

	return info
}
