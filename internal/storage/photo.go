package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kentsikayet/portal/pkg/logger"
)

var log = logger.For("storage")

// MaxPhotoSize is the largest accepted upload.
const MaxPhotoSize = 5 << 20

var (
	ErrTooLarge        = errors.New("photo exceeds 5 MB")
	ErrUnsupportedType = errors.New("photo must be JPEG, PNG or WebP")
	ErrNotFound        = errors.New("photo not found")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Photo is one upload.
type Photo struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// Validate checks size and content type.
func (p Photo) Validate() error {
	if p.Size <= 0 || p.Size > MaxPhotoSize {
		return ErrTooLarge
	}
	if _, ok := extensions[contentType(p.ContentType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// key names the object as complaints/<year>/<month>/<uuid><ext>.
func (p Photo) key(now time.Time) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return path.Join("complaints", now.Format("2006"), now.Format("01"), uuid.NewString()+extensions[contentType(p.ContentType)]), nil
}

func contentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Object is a stored photo: its key in the store and the URL browsers load.
type Object struct {
	Key string
	URL string
}

// PhotoStore keeps uploaded photos. Delete of a missing key is not an error.
type PhotoStore interface {
	Put(ctx context.Context, p Photo) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps photos in process memory. Used in development when MinIO
// is not configured, and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryStore returns a store whose URLs are baseURL + "/" + key.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *MemoryStore) Put(ctx context.Context, p Photo) (Object, error) {
	key, err := p.key(time.Now())
	if err != nil {
		return Object{}, err
	}
	b, err := io.ReadAll(io.LimitReader(p.Body, MaxPhotoSize+1))
	if err != nil {
		return Object{}, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(b)) > MaxPhotoSize {
		return Object{}, ErrTooLarge
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return Object{Key: key, URL: m.baseURL + "/" + key}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len returns the number of stored photos.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}
