package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	supa "github.com/supabase-community/storage-go"
)

// SupabaseStore writes objects to one Supabase Storage bucket.
type SupabaseStore struct {
	client  *supa.Client
	baseURL string
	bucket  string
}

func NewSupabaseStore(url, key, bucket string) *SupabaseStore {
	base := strings.TrimRight(url, "/")
	return &SupabaseStore{
		client:  supa.NewClient(base+"/storage/v1", key, nil),
		baseURL: base,
		bucket:  bucket,
	}
}

func (s *SupabaseStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, &buf, supa.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("supabase upload %s: %w", key, err)
	}
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("supabase delete %s: %w", key, err)
	}
	return nil
}

// URI returns the public object URL.
func (s *SupabaseStore) URI(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
