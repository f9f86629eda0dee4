package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPhotoValidate(t *testing.T) {
	require.NoError(t, Photo{Size: 10, ContentType: "image/jpeg"}.Validate())
	require.NoError(t, Photo{Size: 10, ContentType: "Image/PNG; charset=binary"}.Validate())
	require.ErrorIs(t, Photo{Size: 10, ContentType: "application/pdf"}.Validate(), ErrUnsupportedType)
	require.ErrorIs(t, Photo{Size: MaxPhotoSize + 1, ContentType: "image/jpeg"}.Validate(), ErrTooLarge)
	require.ErrorIs(t, Photo{Size: 0, ContentType: "image/jpeg"}.Validate(), ErrTooLarge)
}

func TestPhotoKey(t *testing.T) {
	k, err := Photo{Size: 1, ContentType: "image/webp"}.key(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(k, "complaints/2026/03/"), k)
	require.True(t, strings.HasSuffix(k, ".webp"), k)
}

func TestMemoryStore_PutOpen(t *testing.T) {
	s := NewMemoryStore("http://localhost:5050/photos/")
	obj, err := s.Put(context.Background(), Photo{Body: strings.NewReader("jpegdata"), Size: 8, ContentType: "image/jpeg"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(obj.URL, "http://localhost:5050/photos/complaints/"), obj.URL)

	key := strings.TrimPrefix(obj.URL, "http://localhost:5050/photos/")
	require.Equal(t, key, obj.Key)
	rc, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "jpegdata", string(b))

	_, err = s.Open(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore("/photos")
	ctx := context.Background()
	obj, err := s.Put(ctx, Photo{Body: strings.NewReader("png"), Size: 3, ContentType: "image/png"})
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, obj.Key))
	require.Equal(t, 0, s.Len())
	_, err = s.Open(ctx, obj.Key)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.Delete(ctx, obj.Key))
}
