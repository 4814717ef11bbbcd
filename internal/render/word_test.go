package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MimeLyc/srs-generator/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZipPart(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()

	f, err := zr.Open(name)
	require.NoError(t, err, name)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	return content
}

// docxParagraphs returns the text of every w:p element in order.
func docxParagraphs(t *testing.T, document []byte) []string {
	t.Helper()

	var (
		paras   []string
		current strings.Builder
		inText  bool
	)
	dec := xml.NewDecoder(bytes.NewReader(document))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				paras = append(paras, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}
	return paras
}

func TestWordRenderer_RoundTrip(t *testing.T) {
	t.Parallel()

	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 10, 15, 30, 0, time.UTC)
	r := NewWordRenderer(layout, WithClock(func() time.Time { return at }))

	body := sampleBody + "\nTerms & <conditions> apply."
	out, err := r.Render(t.Context(), "Todo App", body, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice_20240501_101530.docx", out.Name)
	assert.Equal(t, "alice/docs/alice_20240501_101530.docx", out.RelPath)

	path, err := layout.Resolve("alice", storage.KindWord, out.Name)
	require.NoError(t, err)
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = zr.Close() })

	paras := docxParagraphs(t, readZipPart(t, &zr.Reader, "word/document.xml"))
	require.NotEmpty(t, paras)
	assert.Equal(t, "Todo App", paras[0])

	var nonBlank []string
	for _, p := range paras[1:] {
		if p != "" {
			nonBlank = append(nonBlank, p)
		}
	}
	var want []string
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			want = append(want, line)
		}
	}
	assert.Equal(t, want, nonBlank)

	for _, part := range []string{"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels", "word/styles.xml", "docProps/core.xml"} {
		assert.NotEmpty(t, readZipPart(t, &zr.Reader, part), part)
	}
}

func TestWriteDocx_StylesAndMetadata(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, WriteDocx(&buf, "Todo App", sampleBody, created))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	document := string(readZipPart(t, zr, "word/document.xml"))
	assert.Contains(t, document, `<w:pStyle w:val="Title"></w:pStyle>`)
	assert.Contains(t, document, `<w:pStyle w:val="Heading1"></w:pStyle>`)
	assert.Contains(t, document, `<w:jc w:val="both"></w:jc>`)

	styles := string(readZipPart(t, zr, "word/styles.xml"))
	assert.Contains(t, styles, `<w:sz w:val="28"></w:sz>`)
	assert.Contains(t, styles, `<w:sz w:val="22"></w:sz>`)
	assert.Contains(t, styles, `<w:lang w:val="en-US"></w:lang>`)

	core := string(readZipPart(t, zr, "docProps/core.xml"))
	assert.Contains(t, core, "<dc:title>Todo App</dc:title>")
	assert.Contains(t, core, "2024-05-01T10:00:00Z")
}

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "en-US", DetectLanguage("").String())
	assert.Equal(t, "en-US", DetectLanguage(sampleBody).String())

	german := "Das System muss es den Benutzern ermöglichen, ihre Aufgaben zu verwalten und mit anderen Benutzern zu teilen. " +
		"Die Anwendung speichert alle Daten sicher und ist jederzeit über den Browser erreichbar."
	assert.Equal(t, "de", DetectLanguage(german).String())
}
