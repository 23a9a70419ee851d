package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
)

const fontFamily = "NotoSansJP"

// ErrFontNotConfigured is returned when no TTF has been configured. The core
// PDF fonts have no Japanese glyphs.
var ErrFontNotConfigured = errors.New("PDF_FONT_PATH is not set: a TTF with Japanese glyphs is required")

// PDFRenderer draws project sheets with fpdf using a UTF-8 TTF.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer creates a renderer using the TTF at fontPath.
func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

// Ready reports whether a font is configured.
func (r *PDFRenderer) Ready() error {
	if r.fontPath == "" {
		return ErrFontNotConfigured
	}
	return nil
}

type fpdfMeasurer struct {
	pdf *fpdf.Fpdf
}

func (m fpdfMeasurer) Width(text string, size float64) float64 {
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(text)
}

// Render lays out p and writes the PDF to w.
func (r *PDFRenderer) Render(p project.Project, w io.Writer) error {
	if err := r.Ready(); err != nil {
		return err
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddUTF8Font(fontFamily, "", r.fontPath)
	pdf.SetFont(fontFamily, "", FieldSize)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	sheet := Layout(p, fpdfMeasurer{pdf: pdf})
	pdf.SetTitle(sheet.Title, true)
	for _, op := range sheet.Ops {
		switch op.Kind {
		case OpPage:
			pdf.AddPage()
		case OpText:
			pdf.SetFontSize(op.Size)
			for i, line := range op.Lines {
				pdf.Text(op.X, op.Y+float64(i)*FieldLineHeight, line)
			}
		case OpRule:
			pdf.SetDrawColor(200, 200, 200)
			pdf.Line(op.X, op.Y, op.X2, op.Y)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
