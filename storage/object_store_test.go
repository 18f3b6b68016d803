package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceKey(t *testing.T) {
	assert.Equal(t, "sources/abc.pdf", SourceKey("abc", "Lecture Notes.PDF"))
	assert.Equal(t, "sources/abc", SourceKey("abc", "README"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("sources/a.pdf"))
	assert.Equal(t, "text/markdown; charset=utf-8", ContentType("sources/a.md"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentType("sources/a.docx"))
	assert.Equal(t, "application/octet-stream", ContentType("sources/a"))
}

func TestURIs(t *testing.T) {
	s := NewSupabaseStore("https://proj.supabase.co/", "key", "uploads")
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/uploads/sources/a.pdf", s.URI("sources/a.pdf"))

	m := &MinioStore{bucket: "guides"}
	assert.Equal(t, "s3://guides/sources/a.pdf", m.URI("sources/a.pdf"))

	g := &GCSStore{bucket: "stage"}
	assert.Equal(t, "gs://stage/sources/a.pdf", g.URI("sources/a.pdf"))
}
