package logflags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	elfLayer     = false
	dwarfLayer   = false
	lineLayer    = false
	symbolLayer  = false
	sessionLayer = false

	output io.Writer = os.Stderr
)

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Out = output
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// ELF returns true if the section table reader should log.
func ELF() bool {
	return elfLayer
}

// ELFLogger returns a logger for the section table and relocations.
func ELFLogger() *logrus.Entry {
	return makeLogger(elfLayer, logrus.Fields{"layer": "elf"})
}

// DWARF returns true if the .debug_info decoders should log.
func DWARF() bool {
	return dwarfLayer
}

// DWARFLogger returns a logger for abbreviation, DIE and unit decoding.
func DWARFLogger() *logrus.Entry {
	return makeLogger(dwarfLayer, logrus.Fields{"layer": "dwarf"})
}

// Line returns true if the line-number program interpreter should log.
func Line() bool {
	return lineLayer
}

// LineLogger returns a logger for .debug_line decoding.
func LineLogger() *logrus.Entry {
	return makeLogger(lineLayer, logrus.Fields{"layer": "line"})
}

// Symbol returns true if the resolver should log.
func Symbol() bool {
	return symbolLayer
}

// SymbolLogger returns a logger for the resolver.
func SymbolLogger() *logrus.Entry {
	return makeLogger(symbolLayer, logrus.Fields{"layer": "symbol"})
}

// Session returns true if the lookup session should log.
func Session() bool {
	return sessionLayer
}

// SessionLogger returns a logger for the interactive session.
func SessionLogger() *logrus.Entry {
	return makeLogger(sessionLayer, logrus.Fields{"layer": "session"})
}

// ErrorLogger returns the session logger with errors always enabled, so a
// failed query reports its cause even when no layer is selected.
func ErrorLogger() *logrus.Entry {
	logger := makeLogger(sessionLayer, logrus.Fields{"layer": "session"})
	if !sessionLayer {
		logger.Logger.Level = logrus.ErrorLevel
	}
	return logger
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the layer flags based on the contents of logstr, a comma
// separated list of layers.
func Setup(logFlag bool, logstr string) error {
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "symbol"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(logcmd) {
		case "elf":
			elfLayer = true
		case "dwarf":
			dwarfLayer = true
		case "line":
			lineLayer = true
		case "symbol":
			symbolLayer = true
		case "session":
			sessionLayer = true
		case "all":
			elfLayer, dwarfLayer, lineLayer, symbolLayer, sessionLayer = true, true, true, true, true
		default:
			return fmt.Errorf("unknown log layer %q", logcmd)
		}
	}
	return nil
}

// SetOutput redirects every logger created afterwards to w.
func SetOutput(w io.Writer) {
	output = w
}

// Close resets every layer flag.
func Close() {
	elfLayer, dwarfLayer, lineLayer, symbolLayer, sessionLayer = false, false, false, false, false
	output = os.Stderr
}
