package logger

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// CLI output helpers using fatih/color for cross-platform support.
// They write to an explicit writer so commands can print to cmd.OutOrStdout().

// Success prints a success message with a green marker
func Success(w io.Writer, format string, args ...interface{}) {
	_, _ = SuccessColor.Fprint(w, "[OK] ")
	fmt.Fprintln(w, fmt.Sprintf(format, args...))
}

// Failure prints an error message with a red marker
func Failure(w io.Writer, format string, args ...interface{}) {
	_, _ = ErrorColor.Fprint(w, "[FAIL] ")
	fmt.Fprintln(w, fmt.Sprintf(format, args...))
}

// Warning prints a warning message with a yellow marker
func Warning(w io.Writer, format string, args ...interface{}) {
	_, _ = WarnColor.Fprint(w, "[WARN] ")
	fmt.Fprintln(w, fmt.Sprintf(format, args...))
}

// Header prints a bold header
func Header(w io.Writer, format string, args ...interface{}) {
	_, _ = HighlightColor.Fprintln(w, fmt.Sprintf(format, args...))
}

// StatusLine prints a key-value status line
func StatusLine(w io.Writer, key, value string) {
	_, _ = DimColor.Fprintf(w, "  %-18s ", key+":")
	fmt.Fprintln(w, value)
}

// DisableColors disables all color output (for non-TTY or --no-color flag)
func DisableColors() {
	color.NoColor = true
}

// IsColorEnabled returns whether colors are enabled
func IsColorEnabled() bool {
	return !color.NoColor
}
