// Package logx provides leveled, unstructured logging on top of the
// standard log package. Tile pipelines log load failures at warn; debug is
// for verbose tile-load tracing.
package logx

import (
	"log"
	"os"
)

// Level controls which messages reach the underlying log.Logger.
type Level int

const (
	LevelDebug Level = iota
	LevelWarn
	LevelError
)

var (
	std   = log.New(os.Stderr, "", log.LstdFlags)
	level = LevelWarn
)

// SetLevel changes the minimum level that gets printed. Tests and the
// example binaries can lower it to LevelDebug for verbose tile-load tracing.
func SetLevel(l Level) {
	level = l
}

func Debugf(format string, args ...any) {
	if level > LevelDebug {
		return
	}
	std.Printf("DEBUG "+format, args...)
}

func Warnf(format string, args ...any) {
	if level > LevelWarn {
		return
	}
	std.Printf("WARN "+format, args...)
}

func Errorf(format string, args ...any) {
	std.Printf("ERROR "+format, args...)
}
