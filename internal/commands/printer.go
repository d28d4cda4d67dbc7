package commands

import (
	"fmt"
	"io"

	"github.com/colonyops/taskrelay/internal/core/styles"
)

// printer writes human-facing status lines with a styled prefix.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Successf(format string, args ...any) {
	p.line(styles.SuccessStyle.Render("✓"), format, args...)
}

func (p *printer) Infof(format string, args ...any) {
	p.line(styles.WarningStyle.Render("!"), format, args...)
}

func (p *printer) Errorf(format string, args ...any) {
	p.line(styles.ErrorStyle.Render("✗"), format, args...)
}

func (p *printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) line(prefix, format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}
