package ui

import (
	"fmt"
	"io"
	"os"
)

// ASCII logo for the application
const ASCIILogo = `
    ╔═══════════════════════════════════════════════╗
    ║  ██╗ ██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗  ║
    ║  ██║██╔════╝ ██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝  ║
    ║  ██║██║  ███╗███████╗ ╚████╔╝ ██╔██╗ ██║██║       ║
    ║  ██║██║   ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║       ║
    ║  ██║╚██████╔╝███████║   ██║   ██║ ╚████║╚██████╗  ║
    ║  ╚═╝ ╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝  ║
    ║       PROFILE ACQUISITION & BUCKET SYNC           ║
    ╚═══════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	out       io.Writer = os.Stdout
	quietMode bool
	noColor   bool
)

// SetOutput redirects all terminal output. Nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses everything except errors.
func SetQuietMode(quiet bool) {
	quietMode = quiet
}

// SetNoColor disables ANSI color codes.
func SetNoColor(disabled bool) {
	noColor = disabled
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if quietMode {
		return
	}
	fmt.Fprint(out, Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quietMode {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quietMode {
		return
	}
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(out, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}

// Println prints plain text unless quiet.
func Println(a ...interface{}) {
	if quietMode {
		return
	}
	fmt.Fprintln(out, a...)
}

// Printf prints formatted plain text unless quiet.
func Printf(format string, a ...interface{}) {
	if quietMode {
		return
	}
	fmt.Fprintf(out, format, a...)
}
