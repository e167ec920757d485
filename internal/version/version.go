package version

import (
	"runtime/debug"
	"strings"
)

// String formats the --version line. Values injected with -ldflags win;
// otherwise module build info fills the gaps.
func String(version, commit, date string) string {
	v := strings.TrimSpace(version)
	c := strings.TrimSpace(commit)
	d := strings.TrimSpace(date)

	if info, ok := debug.ReadBuildInfo(); ok {
		if unset(v) {
			if mv := strings.TrimSpace(info.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
		if unset(c) {
			c = setting(info, "vcs.revision")
		}
		if unset(d) {
			d = setting(info, "vcs.time")
		}
	}

	if unset(v) {
		v = "dev"
	}
	if !unset(c) {
		v += " (" + c + ")"
	}
	if !unset(d) {
		v += " " + d
	}
	return v
}

func unset(s string) bool {
	return s == "" || s == "dev" || s == "unknown" || s == "(devel)"
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
