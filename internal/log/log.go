// Package log is a leveled wrapper around the standard library logger used by
// every iibd component. Messages carry a lowercase component prefix, e.g.
// log.Warning("rtd: channel %d comm fault", 2).
package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level orders log verbosity from least to most chatty.
type Level int

const (
	ErrorLevel Level = iota
	WarningLevel
	InfoLevel
	DebugLevel
)

const (
	errorPrefix   = "[error] "
	warningPrefix = "[warn] "
	infoPrefix    = "[info] "
	debugPrefix   = "[debug] "

	// HelpLevels is shown in flag help and validation errors.
	HelpLevels = "must be one of: error, warning, info, debug"
)

var levels = map[string]Level{
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"warn":    WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

type logger struct {
	level Level
	*log.Logger
}

var std = &logger{
	level:  InfoLevel,
	Logger: log.New(os.Stderr, "", log.LstdFlags),
}

// ParseLevel maps a level name to a Level.
func ParseLevel(s string) (Level, error) {
	l, ok := levels[strings.ToLower(s)]
	if !ok {
		return InfoLevel, errors.New("log level " + s + ": " + HelpLevels)
	}
	return l, nil
}

// SetLevel changes the active level by name.
func SetLevel(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	std.level = l
	return nil
}

// Init redirects output and sets the level.
func Init(out io.Writer, level string) error {
	std.SetOutput(out)
	return SetLevel(level)
}

// Enabled reports whether messages at l are emitted.
func Enabled(l Level) bool {
	return std.level >= l
}

func Error(format string, v ...interface{}) {
	if std.level >= ErrorLevel {
		std.Println(fmt.Sprintf(errorPrefix+format, v...))
	}
}

func Warning(format string, v ...interface{}) {
	if std.level >= WarningLevel {
		std.Println(fmt.Sprintf(warningPrefix+format, v...))
	}
}

func Info(format string, v ...interface{}) {
	if std.level >= InfoLevel {
		std.Println(fmt.Sprintf(infoPrefix+format, v...))
	}
}

func Debug(format string, v ...interface{}) {
	if std.level >= DebugLevel {
		std.Println(fmt.Sprintf(debugPrefix+format, v...))
	}
}
