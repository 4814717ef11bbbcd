package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode"

	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

const (
	pdfMargin        = 72.0
	pdfTitleSize     = 24.0
	pdfHeadingSize   = 14.0
	pdfBodySize      = 11.0
	pdfSpacerHeight  = 7.2
	pdfParagraphSkip = 6.0

	pdfFontFamily = "Go"
	// maxReportedRunes caps the characters listed in ErrUnsupportedText.
	maxReportedRunes = 10
)

// ErrUnsupportedText is returned when the text holds characters the embedded
// fonts have no glyph for.
var ErrUnsupportedText = errors.New("text contains characters the PDF fonts cannot render")

var pdfFaces = sync.OnceValues(func() ([]*sfnt.Font, error) {
	faces := make([]*sfnt.Font, 0, 2)
	for _, ttf := range [][]byte{goregular.TTF, gobold.TTF} {
		f, err := sfnt.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse embedded font: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, nil
})

// PDFRenderer writes US-letter documents with the embedded Go fonts, which
// cover the WGL4 repertoire (Latin, Greek, Cyrillic and common symbols).
type PDFRenderer struct {
	layout *storage.Layout
	opts   options
}

var _ Renderer = (*PDFRenderer)(nil)

func NewPDFRenderer(layout *storage.Layout, opts ...Option) *PDFRenderer {
	return &PDFRenderer{layout: layout, opts: newOptions(opts)}
}

func (r *PDFRenderer) Kind() storage.Kind {
	return storage.KindPDF
}

func (r *PDFRenderer) Render(ctx context.Context, title, body, owner string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	t, err := resolveTarget(r.layout, storage.KindPDF, "pdf", owner, r.opts.now())
	if err != nil {
		return Output{}, err
	}
	if err := checkGlyphs(title, body); err != nil {
		return Output{}, err
	}

	pdf := r.build(title, body)
	if err := pdf.OutputFileAndClose(t.path); err != nil {
		return Output{}, fmt.Errorf("write pdf %s: %w", t.out.Name, err)
	}
	return t.out, nil
}

func (r *PDFRenderer) build(title, body string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.opts.compress)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("srs-generator", true)
	pdf.SetCreationDate(r.opts.now().UTC())
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "B", gobold.TTF)

	pdf.AddPage()
	pdf.SetTextColor(0x1a, 0x1a, 0x1a)
	pdf.SetFont(pdfFontFamily, "B", pdfTitleSize)
	pdf.MultiCell(0, pdfTitleSize*1.25, title, "", "C", false)
	pdf.Ln(pdfTitleSize)

	for _, block := range Classify(body) {
		switch block.Kind {
		case BlockSpacer:
			pdf.Ln(pdfSpacerHeight)
		case BlockHeading:
			pdf.Ln(pdfParagraphSkip)
			pdf.SetTextColor(0x1a, 0x1a, 0x1a)
			pdf.SetFont(pdfFontFamily, "B", pdfHeadingSize)
			pdf.MultiCell(0, pdfHeadingSize*1.25, block.Text, "", "L", false)
			pdf.Ln(pdfParagraphSkip)
		case BlockParagraph:
			pdf.SetTextColor(0x33, 0x33, 0x33)
			pdf.SetFont(pdfFontFamily, "", pdfBodySize)
			pdf.MultiCell(0, pdfBodySize*1.3, block.Text, "", "J", false)
			pdf.Ln(pdfParagraphSkip)
		}
	}
	return pdf
}

// checkGlyphs rejects text the embedded fonts would render as empty boxes.
func checkGlyphs(texts ...string) error {
	faces, err := pdfFaces()
	if err != nil {
		return err
	}

	var (
		buf     sfnt.Buffer
		missing []rune
		seen    = make(map[rune]bool)
	)
	for _, text := range texts {
		for _, r := range text {
			if unicode.IsSpace(r) || seen[r] {
				continue
			}
			seen[r] = true
			for _, face := range faces {
				idx, err := face.GlyphIndex(&buf, r)
				if err != nil {
					return fmt.Errorf("look up glyph %q: %w", r, err)
				}
				if idx == 0 {
					missing = append(missing, r)
					break
				}
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if len(missing) > maxReportedRunes {
		missing = missing[:maxReportedRunes]
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedText, string(missing))
}
