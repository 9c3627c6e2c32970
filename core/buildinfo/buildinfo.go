// Package buildinfo reports what binary is running. The variables are set with
//
//	-ldflags "-X github.com/m3rciful/taxibot/core/buildinfo.Version=v1.2.3 \
//	          -X github.com/m3rciful/taxibot/core/buildinfo.Commit=abcdef0 \
//	          -X github.com/m3rciful/taxibot/core/buildinfo.Date=2026-01-02T15:04:05Z"
package buildinfo

import (
	"runtime/debug"
	"sync"
)

var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// Info is a snapshot of the build metadata.
type Info struct {
	Version string
	Commit  string
	Date    string
	// Dirty is set when the toolchain recorded uncommitted changes.
	Dirty bool
}

var vcs = sync.OnceValue(func() (out Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		out.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.Date = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}
	return out
})

// Read returns the linker-provided values, filling the defaults from the
// toolchain's VCS stamp when available.
func Read() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	stamp := vcs()
	if info.Version == "dev" && stamp.Version != "" {
		info.Version = stamp.Version
	}
	if info.Commit == "local" && stamp.Commit != "" {
		info.Commit = shortCommit(stamp.Commit)
		info.Dirty = stamp.Dirty
	}
	if info.Date == "" {
		info.Date = stamp.Date
	}
	return info
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}

// String renders "version (commit)", marking dirty trees.
func (i Info) String() string {
	c := i.Commit
	if i.Dirty {
		c += "+dirty"
	}
	return i.Version + " (" + c + ")"
}
