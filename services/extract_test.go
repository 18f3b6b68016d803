package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// minimalPDF builds a one-page PDF whose content stream shows text.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func minimalDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var d docxDocument
	for _, p := range paragraphs {
		d.Text(p)
	}
	data, err := d.Bytes()
	require.NoError(t, err)
	return data
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, string, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestInputTypeFromFilename(t *testing.T) {
	cases := map[string]InputType{
		"notes.PDF":   InputPDF,
		"a.docx":      InputDOCX,
		"a.txt":       InputTXT,
		"README.md":   InputMarkdown,
		"page.html":   InputHTML,
		"lecture.mp3": InputAudio,
		"clip.mp4":    InputAudio,
	}
	for name, want := range cases {
		got, ok := InputTypeFromFilename(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := InputTypeFromFilename("slides.pptx")
	assert.False(t, ok)
}

func TestExtractSupportedTypes(t *testing.T) {
	ex := NewExtractor(nil, nil)
	ctx := context.Background()

	t.Run("pdf", func(t *testing.T) {
		path := writeFile(t, "upload", minimalPDF("Photosynthesis converts light"))
		assert.Contains(t, ex.Extract(ctx, path, "bio.pdf"), "Photosynthesis")
	})
	t.Run("docx", func(t *testing.T) {
		path := writeFile(t, "upload", minimalDOCX(t, "First paragraph", "Second & last"))
		text := ex.Extract(ctx, path, "notes.docx")
		assert.Equal(t, "First paragraph\nSecond & last", text)
	})
	t.Run("txt", func(t *testing.T) {
		path := writeFile(t, "upload", []byte("\xef\xbb\xbfplain text"))
		assert.Equal(t, "plain text", ex.Extract(ctx, path, "a.txt"))
	})
	t.Run("md", func(t *testing.T) {
		path := writeFile(t, "upload", []byte("# Heading\n\nbody"))
		assert.Equal(t, "# Heading\n\nbody", ex.Extract(ctx, path, "a.MD"))
	})
	t.Run("html", func(t *testing.T) {
		page := `<html><head><title>T</title><style>p{}</style></head><body><h1>Cells</h1><script>var x</script><p>Nucleus</p></body></html>`
		path := writeFile(t, "upload", []byte(page))
		assert.Equal(t, "Cells\nNucleus", ex.Extract(ctx, path, "a.html"))
	})
}

func TestExtractFallsBackToEmpty(t *testing.T) {
	ex := NewExtractor(nil, nil)
	ctx := context.Background()

	path := writeFile(t, "upload", []byte("some bytes"))
	assert.Equal(t, "", ex.Extract(ctx, path, "slides.pptx"))
	assert.Equal(t, "", ex.Extract(ctx, path, "broken.pdf"))
	assert.Equal(t, "", ex.Extract(ctx, path, "broken.docx"))
	assert.Equal(t, "", ex.Extract(ctx, filepath.Join(t.TempDir(), "missing"), "a.txt"))
	assert.Equal(t, "", ex.Extract(ctx, path, "talk.mp3"))
}

func TestExtractAudioUsesTranscriber(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, "upload", []byte("audio"))

	ok := &fakeTranscriber{text: "spoken words"}
	assert.Equal(t, "spoken words", NewExtractor(ok, nil).Extract(ctx, path, "talk.wav"))
	assert.Equal(t, 1, ok.calls)

	failing := &fakeTranscriber{err: errors.New("quota")}
	assert.Equal(t, "", NewExtractor(failing, nil).Extract(ctx, path, "talk.m4a"))
}

func TestPreCleanText(t *testing.T) {
	in := "Table of Contents\nIntro ........ 3\nReal line one\x00\n\n\n\n  12  \nPage 4 of 10\nReal line two   \n"
	assert.Equal(t, "Real line one\n\nReal line two", PreCleanText(in))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo wörld", 5))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "", truncateRunes("abc", 0))
}
