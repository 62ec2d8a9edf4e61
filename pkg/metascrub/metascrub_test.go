package metascrub

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScrubber() *Scrubber {
	log := zerolog.Nop()
	return NewScrubber(&log)
}

// --- fixture builders ---

func jpegSegment(marker byte, payload []byte) []byte {
	seg := []byte{0xFF, marker, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}

func buildJPEG() []byte {
	var b []byte
	b = append(b, 0xFF, 0xD8)                                             // SOI
	b = append(b, jpegSegment(0xE0, []byte("JFIF\x00rest"))...)           // APP0, kept
	b = append(b, jpegSegment(0xE1, []byte("Exif\x00\x00secret-gps"))...) // APP1, dropped
	b = append(b, jpegSegment(0xFE, []byte("shot by alice"))...)          // COM, dropped
	b = append(b, jpegSegment(0xDB, bytes.Repeat([]byte{1}, 64))...)      // DQT, kept
	b = append(b, jpegSegment(0xC0, []byte{8, 0, 1, 0, 1, 1, 0x11, 0})...)
	b = append(b, 0xFF, 0xDA, 0x00, 0x04, 0x01, 0x02) // SOS header
	b = append(b, 0xAB, 0xCD, 0xEF)                   // scan data
	b = append(b, 0xFF, 0xD9)                         // EOI
	return b
}

func pngChunkBytes(kind string, data []byte) []byte {
	chunk := make([]byte, 4)
	binary.BigEndian.PutUint32(chunk, uint32(len(data)))
	chunk = append(chunk, kind...)
	chunk = append(chunk, data...)
	return append(chunk, 0, 0, 0, 0) // crc, not validated here
}

func buildPNG() []byte {
	var b []byte
	b = append(b, pngSignature...)
	b = append(b, pngChunkBytes("IHDR", make([]byte, 13))...)
	b = append(b, pngChunkBytes("tEXt", []byte("Author\x00Alice"))...)
	b = append(b, pngChunkBytes("tEXt", []byte("Software\x00SecretCam 2.0"))...)
	b = append(b, pngChunkBytes("tIME", make([]byte, 7))...)
	b = append(b, pngChunkBytes("IDAT", []byte{1, 2, 3, 4})...)
	b = append(b, pngChunkBytes("IEND", nil)...)
	return b
}

func buildPDF() []byte {
	return []byte("%PDF-1.4\n" +
		"1 0 obj\n<< /Author (Alice Smith) /Creator (SecretWriter 3.1) " +
		"/CreationDate (D:20240131120000Z) >>\nendobj\n" +
		"%%EOF\n")
}

func buildOfficeDoc(t *testing.T) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	core, err := w.Create("docProps/core.xml")
	require.NoError(t, err)
	core.Write([]byte(`<cp:coreProperties><dc:creator>Alice</dc:creator>` +
		`<dcterms:created>2024-01-31T12:00:00Z</dcterms:created></cp:coreProperties>`))

	app, err := w.Create("docProps/app.xml")
	require.NoError(t, err)
	app.Write([]byte(`<Properties><Application>SecretOffice</Application></Properties>`))

	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	doc.Write([]byte(`<w:document>hello</w:document>`))

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeFixture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// --- tests ---

func TestAnalyzePNG(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "img.png", buildPNG())

	report, err := s.Analyze(path)
	require.NoError(t, err)

	assert.True(t, report.HasAuthor)
	assert.Equal(t, "SecretCam 2.0", report.SoftwareInfo)
	assert.Equal(t, "PNG Image", report.FileType)
	assert.NotEmpty(t, report.RawTags)
}

func TestCleanPNG(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "img.png", buildPNG())

	out, err := s.Clean(path, "", Options{Author: true, Date: true, GPS: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "img_clean.png"), out)

	report, err := s.Analyze(out)
	require.NoError(t, err)
	assert.False(t, report.HasAuthor)
	assert.Empty(t, report.RawTags)

	// Image chunks survive.
	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	chunks, err := parsePNG(cleaned)
	require.NoError(t, err)
	kinds := make([]string, 0, len(chunks))
	for _, c := range chunks {
		kinds = append(kinds, c.kind)
	}
	assert.Equal(t, []string{"IHDR", "IDAT", "IEND"}, kinds)

	// The source is untouched.
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buildPNG(), original)
}

func TestCleanJPEG(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "photo.jpg", buildJPEG())

	out, err := s.Clean(path, "", Options{GPS: true})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, cleaned[:2])
	assert.NotContains(t, string(cleaned), "secret-gps")
	assert.NotContains(t, string(cleaned), "shot by alice")
	assert.Contains(t, string(cleaned), "JFIF")
	// Scan data is preserved verbatim.
	assert.True(t, bytes.Contains(cleaned, []byte{0xAB, 0xCD, 0xEF}))
}

func TestCleanJPEGTrailingMarkerByte(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	// Segment stream that ends in a lone 0xFF: must fail, not panic.
	path := writeFixture(t, dir, "broken.jpg", []byte{0xFF, 0xD8, 0xFF, 0xFF})

	_, err := s.Clean(path, "", Options{GPS: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed segment stream")
}

func TestAnalyzePDF(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "doc.pdf", buildPDF())

	report, err := s.Analyze(path)
	require.NoError(t, err)
	assert.True(t, report.HasAuthor)
	assert.Equal(t, "SecretWriter 3.1", report.SoftwareInfo)
	assert.Equal(t, "D:20240131120000Z", report.CreationDate)
}

func TestCleanPDFPreservesLayout(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	source := buildPDF()
	path := writeFixture(t, dir, "doc.pdf", source)

	out, err := s.Clean(path, "", Options{Author: true, Date: true})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	// In-place blanking: identical length, offsets intact.
	assert.Len(t, cleaned, len(source))
	assert.NotContains(t, string(cleaned), "Alice Smith")
	assert.NotContains(t, string(cleaned), "D:20240131120000Z")

	report, err := s.Analyze(out)
	require.NoError(t, err)
	assert.False(t, report.HasAuthor)
	assert.Empty(t, report.CreationDate)
}

func TestCleanPDFSelectiveOptions(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "doc.pdf", buildPDF())

	// Date only: the author survives.
	out, err := s.Clean(path, "", Options{Date: true})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(cleaned), "Alice Smith")
	assert.NotContains(t, string(cleaned), "D:20240131120000Z")
}

func TestAnalyzeAndCleanOffice(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "report.docx", buildOfficeDoc(t))

	report, err := s.Analyze(path)
	require.NoError(t, err)
	assert.True(t, report.HasAuthor)
	assert.Equal(t, "SecretOffice", report.SoftwareInfo)
	assert.Equal(t, "2024-01-31T12:00:00Z", report.CreationDate)

	out, err := s.Clean(path, "", Options{Author: true})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	r, err := zip.NewReader(bytes.NewReader(cleaned), int64(len(cleaned)))
	require.NoError(t, err)

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"word/document.xml"}, names)

	after, err := s.Analyze(out)
	require.NoError(t, err)
	assert.False(t, after.HasAuthor)
	assert.Empty(t, after.RawTags)
}

func TestCleanZipKeepsEntries(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	require.NoError(t, w.SetComment("packed on alice's laptop"))
	f, err := w.Create("data/a.txt")
	require.NoError(t, err)
	f.Write([]byte("payload"))
	require.NoError(t, w.Close())

	path := writeFixture(t, dir, "archive.zip", buf.Bytes())
	out, err := s.Clean(path, "", Options{Date: true})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	r, err := zip.NewReader(bytes.NewReader(cleaned), int64(len(cleaned)))
	require.NoError(t, err)
	require.Len(t, r.File, 1)
	assert.Equal(t, "data/a.txt", r.File[0].Name)
	assert.Empty(t, r.Comment)

	rc, err := r.File[0].Open()
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), content)
}

func TestCleanNoOptionsCopiesUnmodified(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	source := buildPDF()
	path := writeFixture(t, dir, "doc.pdf", source)

	out, err := s.Clean(path, "", Options{})
	require.NoError(t, err)

	cleaned, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, source, cleaned)
}

func TestCleanRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "doc.pdf", buildPDF())
	writeFixture(t, dir, "doc_clean.pdf", []byte("existing"))

	_, err := s.Clean(path, "", Options{Author: true})
	assert.ErrorContains(t, err, "already exists")
}

func TestCleanOutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "doc.pdf", buildPDF())

	out, err := s.Clean(path, outDir, Options{Author: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "doc_clean.pdf"), out)
}

func TestUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "notes.txt", []byte("plain text"))

	_, err := s.Analyze(path)
	assert.ErrorContains(t, err, "unsupported file type")
	assert.False(t, s.Supported(path))
	assert.True(t, s.Supported("x.JPG"))
}

func TestRefusesSymlink(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	target := writeFixture(t, dir, "real.pdf", buildPDF())
	link := filepath.Join(dir, "link.pdf")
	require.NoError(t, os.Symlink(target, link))

	_, err := s.Analyze(link)
	assert.ErrorContains(t, err, "symlink")
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	s := testScrubber()
	path := writeFixture(t, dir, "doc.pdf", buildPDF())

	out, err := s.Clean(path, "", Options{Author: true, Date: true})
	require.NoError(t, err)

	diff, err := s.Compare(path, out)
	require.NoError(t, err)
	assert.Contains(t, diff.RemovedTags, "Author")
	assert.Contains(t, diff.RemovedTags, "CreationDate")
	assert.Equal(t, diff.OriginalSize, diff.CleanedSize)
}
