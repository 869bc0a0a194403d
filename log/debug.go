package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

func EnableDebug() {
	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// SetLevel applies a level by name ("trace", "debug", "info", ...). Unknown
// names leave the current level untouched.
func SetLevel(name string) {
	if name == "" {
		return
	}

	lvl := hclog.LevelFromString(name)
	if lvl == hclog.NoLevel {
		L.Warn("unknown log level", "level", name)
		return
	}

	L.SetLevel(lvl)
}
