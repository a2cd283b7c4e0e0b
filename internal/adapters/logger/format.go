package logger

import (
	"io"
	"os"

	"go.trai.ch/splitup/internal/core/domain"
	"golang.org/x/term"
)

// ResolveFormat turns a configured log format into pretty or json. The auto
// format picks pretty for terminals and json for everything else, including CI.
func ResolveFormat(format string, w io.Writer) string {
	switch format {
	case domain.LogFormatJSON, domain.LogFormatPretty:
		return format
	}

	ci := os.Getenv("CI")
	if ci == "true" || ci == "1" {
		return domain.LogFormatJSON
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return domain.LogFormatJSON
	}
	return domain.LogFormatPretty
}
