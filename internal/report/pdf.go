// Package report renders a finished session report as a PDF document.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"mindtriage/internal/scoring"
)

// ErrNoFont means none of the configured TTF fonts could be loaded.
var ErrNoFont = errors.New("no usable TTF font for PDF")

// DefaultFontPaths are tried after the configured font.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontFamily = "Body"
	margin     = 40.0
	textWidth  = 595.28 - 2*margin
	pageBottom = 841.89 - margin
)

// Document is the content of one exported report.
type Document struct {
	SessionID  string
	Date       time.Time
	Conditions []string
	Results    []scoring.Result
	Report     string
	Fallback   bool
}

// Renderer produces PDF bytes. It holds no state between calls.
type Renderer struct {
	FontPaths []string
}

// NewRenderer tries fontPath first, then DefaultFontPaths.
func NewRenderer(fontPath string) *Renderer {
	var paths []string
	if fontPath != "" {
		paths = append(paths, fontPath)
	}
	return &Renderer{FontPaths: append(paths, DefaultFontPaths...)}
}

// Render lays out the result table followed by the report text.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(margin, margin, margin, margin)
	pdf.AddPage()

	if err := r.loadFont(pdf); err != nil {
		return nil, err
	}
	w := &writer{pdf: pdf}

	w.heading(18, "Mental Health Screening Report")
	w.gap(6)
	w.line(10, fmt.Sprintf("Date: %s", doc.Date.Format("January 2, 2006")))
	if doc.SessionID != "" {
		w.line(10, "Session: "+doc.SessionID)
	}
	if len(doc.Conditions) > 0 {
		w.paragraph(10, "Conditions raised during screening: "+strings.Join(doc.Conditions, ", "))
	}
	w.gap(10)

	w.heading(14, "Questionnaire Results")
	if len(doc.Results) == 0 {
		w.line(11, "No questionnaires were completed.")
	}
	for _, res := range doc.Results {
		w.paragraph(11, res.Name)
		for _, l := range res.Lines() {
			w.paragraph(10, "    "+l)
		}
		w.gap(4)
	}
	w.gap(10)

	if doc.Fallback {
		w.paragraph(10, "The narrative report could not be generated; only the questionnaire results are shown.")
		w.gap(6)
	}
	w.markdown(doc.Report)

	if w.err != nil {
		return nil, fmt.Errorf("layout PDF: %w", w.err)
	}
	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) loadFont(pdf *gopdf.GoPdf) error {
	var last error
	for _, path := range r.FontPaths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			last = err
			continue
		}
		return nil
	}
	if last == nil {
		return ErrNoFont
	}
	return fmt.Errorf("%w: %v", ErrNoFont, last)
}

// writer keeps the first layout error so call sites stay linear.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) setFont(size float64) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontFamily, "", size)
	}
}

func (w *writer) breakIfNeeded(h float64) {
	if w.err == nil && w.pdf.GetY()+h > pageBottom {
		w.pdf.AddPage()
	}
}

func (w *writer) line(size float64, text string) {
	w.setFont(size)
	w.breakIfNeeded(size + 4)
	if w.err != nil {
		return
	}
	w.pdf.SetX(margin)
	if text != "" {
		w.err = w.pdf.Cell(nil, text)
	}
	w.pdf.Br(size + 4)
}

func (w *writer) paragraph(size float64, text string) {
	if strings.TrimSpace(text) == "" {
		w.gap(size)
		return
	}
	w.setFont(size)
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.line(size, l)
	}
}

func (w *writer) heading(size float64, text string) {
	w.gap(2)
	w.paragraph(size, text)
}

func (w *writer) gap(h float64) {
	if w.err == nil {
		w.pdf.Br(h)
	}
}

// markdown renders the subset of Markdown the report model produces:
// headings, bullets, bold markers and plain paragraphs.
func (w *writer) markdown(text string) {
	for _, raw := range strings.Split(text, "\n") {
		l := strings.TrimSpace(raw)
		l = strings.ReplaceAll(l, "**", "")
		switch {
		case strings.HasPrefix(l, "### "):
			w.heading(12, strings.TrimPrefix(l, "### "))
		case strings.HasPrefix(l, "## "):
			w.heading(14, strings.TrimPrefix(l, "## "))
		case strings.HasPrefix(l, "# "):
			w.heading(16, strings.TrimPrefix(l, "# "))
		case strings.HasPrefix(l, "- "), strings.HasPrefix(l, "* "):
			w.paragraph(10, "  • "+l[2:])
		case l == "***" || l == "---":
			w.gap(6)
		default:
			w.paragraph(10, l)
		}
	}
}
