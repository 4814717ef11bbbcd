package render

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MimeLyc/srs-generator/internal/storage"
)

const (
	wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	// sizes are in half-points
	wordTitleSize   = 48
	wordHeadingSize = 28
	wordBodySize    = 22
)

// WordRenderer writes Office Open XML (.docx) documents.
type WordRenderer struct {
	layout *storage.Layout
	opts   options
}

var _ Renderer = (*WordRenderer)(nil)

func NewWordRenderer(layout *storage.Layout, opts ...Option) *WordRenderer {
	return &WordRenderer{layout: layout, opts: newOptions(opts)}
}

func (r *WordRenderer) Kind() storage.Kind {
	return storage.KindWord
}

func (r *WordRenderer) Render(ctx context.Context, title, body, owner string) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	now := r.opts.now()
	t, err := resolveTarget(r.layout, storage.KindWord, "docx", owner, now)
	if err != nil {
		return Output{}, err
	}

	f, err := os.Create(t.path)
	if err != nil {
		return Output{}, fmt.Errorf("create docx %s: %w", t.out.Name, err)
	}
	if err := WriteDocx(f, title, body, now); err != nil {
		_ = f.Close()
		return Output{}, fmt.Errorf("write docx %s: %w", t.out.Name, err)
	}
	if err := f.Close(); err != nil {
		return Output{}, fmt.Errorf("close docx %s: %w", t.out.Name, err)
	}
	return t.out, nil
}

// WriteDocx streams a complete .docx package for title and body to w.
func WriteDocx(w io.Writer, title, body string, created time.Time) error {
	lang := DetectLanguage(body).String()

	parts := []struct {
		name  string
		value any
	}{
		{"[Content_Types].xml", contentTypes()},
		{"_rels/.rels", packageRels()},
		{"word/_rels/document.xml.rels", documentRels()},
		{"word/document.xml", buildDocument(title, body)},
		{"word/styles.xml", buildStyles(lang)},
		{"docProps/core.xml", coreProperties{
			XmlnsCP:      "http://schemas.openxmlformats.org/package/2006/metadata/core-properties",
			XmlnsDC:      "http://purl.org/dc/elements/1.1/",
			XmlnsDCTerms: "http://purl.org/dc/terms/",
			XmlnsXSI:     "http://www.w3.org/2001/XMLSchema-instance",
			Title:        title,
			Creator:      "srs-generator",
			Language:     lang,
			Created:      w3cDate{Type: "dcterms:W3CDTF", Value: created.UTC().Format(time.RFC3339)},
		}},
	}

	zw := zip.NewWriter(w)
	for _, part := range parts {
		pw, err := zw.Create(part.name)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(pw, xml.Header); err != nil {
			return err
		}
		if err := xml.NewEncoder(pw).Encode(part.value); err != nil {
			return fmt.Errorf("encode %s: %w", part.name, err)
		}
	}
	return zw.Close()
}

func buildDocument(title, body string) wDocument {
	paras := []wParagraph{
		newParagraph(title, "Title", "center"),
		{},
	}
	for _, block := range Classify(body) {
		switch block.Kind {
		case BlockSpacer:
			paras = append(paras, wParagraph{})
		case BlockHeading:
			paras = append(paras, newParagraph(block.Text, "Heading1", ""))
		case BlockParagraph:
			paras = append(paras, newParagraph(block.Text, "", "both"))
		}
	}

	return wDocument{
		XmlnsW: wordNamespace,
		XmlnsR: "http://schemas.openxmlformats.org/officeDocument/2006/relationships",
		Body: wBody{
			Paragraphs: paras,
			Section: wSection{
				PageSize: wPageSize{W: 12240, H: 15840},
				Margins:  wMargins{Top: 1440, Right: 1440, Bottom: 1440, Left: 1440, Header: 720, Footer: 720},
			},
		},
	}
}

func newParagraph(text, style, align string) wParagraph {
	p := wParagraph{
		Runs: []wRun{{Text: wText{Space: "preserve", Value: text}}},
	}
	if style != "" || align != "" {
		p.Props = &wParagraphProps{}
		if style != "" {
			p.Props.Style = &wVal{Val: style}
		}
		if align != "" {
			p.Props.Justify = &wVal{Val: align}
		}
	}
	return p
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	XmlnsW  string   `xml:"xmlns:w,attr"`
	XmlnsR  string   `xml:"xmlns:r,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph `xml:"w:p"`
	Section    wSection     `xml:"w:sectPr"`
}

type wParagraph struct {
	Props *wParagraphProps `xml:"w:pPr,omitempty"`
	Runs  []wRun           `xml:"w:r"`
}

type wParagraphProps struct {
	Style   *wVal `xml:"w:pStyle,omitempty"`
	Justify *wVal `xml:"w:jc,omitempty"`
}

type wRun struct {
	Text wText `xml:"w:t"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wSection struct {
	PageSize wPageSize `xml:"w:pgSz"`
	Margins  wMargins  `xml:"w:pgMar"`
}

type wPageSize struct {
	W int `xml:"w:w,attr"`
	H int `xml:"w:h,attr"`
}

type wMargins struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
}

type wStyles struct {
	XMLName  xml.Name     `xml:"w:styles"`
	XmlnsW   string       `xml:"xmlns:w,attr"`
	Defaults wDocDefaults `xml:"w:docDefaults"`
	Styles   []wStyle     `xml:"w:style"`
}

type wDocDefaults struct {
	RunDefaults struct {
		Props wRunProps `xml:"w:rPr"`
	} `xml:"w:rPrDefault"`
}

type wStyle struct {
	Type      string           `xml:"w:type,attr"`
	ID        string           `xml:"w:styleId,attr"`
	Default   string           `xml:"w:default,attr,omitempty"`
	Name      wVal             `xml:"w:name"`
	BasedOn   *wVal            `xml:"w:basedOn,omitempty"`
	Next      *wVal            `xml:"w:next,omitempty"`
	ParaProps *wStyleParaProps `xml:"w:pPr,omitempty"`
	RunProps  wRunProps        `xml:"w:rPr"`
}

type wStyleParaProps struct {
	KeepNext *struct{} `xml:"w:keepNext,omitempty"`
	Spacing  *wSpacing `xml:"w:spacing,omitempty"`
	Justify  *wVal     `xml:"w:jc,omitempty"`
}

type wSpacing struct {
	Before int `xml:"w:before,attr"`
	After  int `xml:"w:after,attr"`
}

type wRunProps struct {
	Fonts *wFonts   `xml:"w:rFonts,omitempty"`
	Bold  *struct{} `xml:"w:b,omitempty"`
	Color *wVal     `xml:"w:color,omitempty"`
	Size  *wVal     `xml:"w:sz,omitempty"`
	Lang  *wVal     `xml:"w:lang,omitempty"`
}

type wFonts struct {
	ASCII string `xml:"w:ascii,attr"`
	HAnsi string `xml:"w:hAnsi,attr"`
}

func buildStyles(lang string) wStyles {
	size := func(halfPoints int) *wVal { return &wVal{Val: fmt.Sprint(halfPoints)} }
	bold := &struct{}{}

	var styles wStyles
	styles.XmlnsW = wordNamespace
	styles.Defaults.RunDefaults.Props = wRunProps{
		Fonts: &wFonts{ASCII: "Calibri", HAnsi: "Calibri"},
		Size:  size(wordBodySize),
		Lang:  &wVal{Val: lang},
	}
	styles.Styles = []wStyle{
		{
			Type:      "paragraph",
			ID:        "Normal",
			Default:   "1",
			Name:      wVal{Val: "Normal"},
			ParaProps: &wStyleParaProps{Spacing: &wSpacing{After: 160}},
			RunProps:  wRunProps{Color: &wVal{Val: "333333"}, Size: size(wordBodySize)},
		},
		{
			Type:      "paragraph",
			ID:        "Title",
			Name:      wVal{Val: "Title"},
			BasedOn:   &wVal{Val: "Normal"},
			Next:      &wVal{Val: "Normal"},
			ParaProps: &wStyleParaProps{Spacing: &wSpacing{After: 600}, Justify: &wVal{Val: "center"}},
			RunProps:  wRunProps{Bold: bold, Color: &wVal{Val: "1A1A1A"}, Size: size(wordTitleSize)},
		},
		{
			Type:      "paragraph",
			ID:        "Heading1",
			Name:      wVal{Val: "heading 1"},
			BasedOn:   &wVal{Val: "Normal"},
			Next:      &wVal{Val: "Normal"},
			ParaProps: &wStyleParaProps{KeepNext: &struct{}{}, Spacing: &wSpacing{Before: 240, After: 240}},
			RunProps:  wRunProps{Bold: bold, Color: &wVal{Val: "1A1A1A"}, Size: size(wordHeadingSize)},
		},
	}
	return styles
}

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Xmlns   string         `xml:"xmlns,attr"`
	Items   []relationship `xml:"Relationship"`
}

type relationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

func packageRels() relationships {
	return relationships{
		Xmlns: relsNamespace,
		Items: []relationship{
			{ID: "rId1", Type: "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument", Target: "word/document.xml"},
			{ID: "rId2", Type: "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties", Target: "docProps/core.xml"},
		},
	}
}

func documentRels() relationships {
	return relationships{
		Xmlns: relsNamespace,
		Items: []relationship{
			{ID: "rId1", Type: "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles", Target: "styles.xml"},
		},
	}
}

type typesDoc struct {
	XMLName   xml.Name       `xml:"Types"`
	Xmlns     string         `xml:"xmlns,attr"`
	Defaults  []typeDefault  `xml:"Default"`
	Overrides []typeOverride `xml:"Override"`
}

type typeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type typeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

func contentTypes() typesDoc {
	return typesDoc{
		Xmlns: "http://schemas.openxmlformats.org/package/2006/content-types",
		Defaults: []typeDefault{
			{Extension: "rels", ContentType: "application/vnd.openxmlformats-package.relationships+xml"},
			{Extension: "xml", ContentType: "application/xml"},
		},
		Overrides: []typeOverride{
			{PartName: "/word/document.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
			{PartName: "/word/styles.xml", ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
			{PartName: "/docProps/core.xml", ContentType: "application/vnd.openxmlformats-package.core-properties+xml"},
		},
	}
}

type coreProperties struct {
	XMLName      xml.Name `xml:"cp:coreProperties"`
	XmlnsCP      string   `xml:"xmlns:cp,attr"`
	XmlnsDC      string   `xml:"xmlns:dc,attr"`
	XmlnsDCTerms string   `xml:"xmlns:dcterms,attr"`
	XmlnsXSI     string   `xml:"xmlns:xsi,attr"`
	Title        string   `xml:"dc:title"`
	Creator      string   `xml:"dc:creator"`
	Language     string   `xml:"dc:language"`
	Created      w3cDate  `xml:"dcterms:created"`
}

type w3cDate struct {
	Type  string `xml:"xsi:type,attr"`
	Value string `xml:",chardata"`
}
