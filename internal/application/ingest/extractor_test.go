package ingest

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

func TestExtractPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	text, err := ExtractText(path, "txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	text, err = ExtractText(path, "md")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := ExtractText("/tmp/whatever.xlsx", "xlsx")
	assert.ErrorIs(t, err, domainKnowledge.ErrUnsupportedFileType)
}

func TestExtractDocx(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	writeTestDocx(t, path, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>first paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := ExtractText(path, "docx")
	require.NoError(t, err)
	assert.Contains(t, text, "first paragraph\n")
	assert.Contains(t, text, "second paragraph\n")
}

func TestExtractDocxMissingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = ExtractText(path, "docx")
	assert.ErrorIs(t, err, domainKnowledge.ErrDocumentParse)
}

func TestFileTypeFromName(t *testing.T) {
	assert.Equal(t, "pdf", FileTypeFromName("report.PDF"))
	assert.Equal(t, "txt", FileTypeFromName("a.b.txt"))
	assert.Equal(t, "", FileTypeFromName("noext"))
	assert.Equal(t, "", FileTypeFromName("trailing."))
}

// writeTestDocx 构造仅含主文档的最小 docx
func writeTestDocx(t *testing.T, path, documentXML string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}
