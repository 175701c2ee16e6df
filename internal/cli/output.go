package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	colorGreen  = color.New(color.FgGreen)
	colorYellow = color.New(color.FgYellow)
	colorBlue   = color.New(color.FgBlue)
	colorGray   = color.New(color.FgHiBlack)
)

const indent = "  "

func successf(w io.Writer, msg string, v ...any) {
	fmt.Fprintf(w, "%s%s %s\n", indent, colorGreen.Sprint("✔"), fmt.Sprintf(msg, v...))
}

func infof(w io.Writer, msg string, v ...any) {
	fmt.Fprintf(w, "%s%s %s\n", indent, colorBlue.Sprint("•"), fmt.Sprintf(msg, v...))
}

func warnf(w io.Writer, msg string, v ...any) {
	fmt.Fprintf(w, "%s%s %s\n", indent, colorYellow.Sprint("•"), fmt.Sprintf(msg, v...))
}

// field prints an aligned "label: value" line.
func field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s%-10s %v\n", indent, colorGray.Sprint(label+":"), value)
}
