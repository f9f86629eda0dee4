// Package storage keeps complaint and solution photos in object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kentsikayet/portal/internal/config"
)

// presignTTL is used for photo links when no public URL is configured. It is
// the longest lifetime S3 accepts.
const presignTTL = 7 * 24 * time.Hour

// MinIOStore stores photos in a MinIO bucket.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOStore connects to MinIO and ensures the bucket exists.
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStore{client: mc, bucket: cfg.Bucket, publicURL: cfg.PublicURL}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// Put uploads a photo and returns the URL browsers load it from.
func (s *MinIOStore) Put(ctx context.Context, p Photo) (Object, error) {
	key, err := p.key(time.Now())
	if err != nil {
		return Object{}, err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, p.Body, p.Size, minio.PutObjectOptions{ContentType: p.ContentType}); err != nil {
		return Object{}, fmt.Errorf("upload photo: %w", err)
	}
	log.Infof("stored %s (%d bytes)", key, p.Size)
	if s.publicURL != "" {
		return Object{Key: key, URL: s.publicURL + "/" + s.bucket + "/" + key}, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignTTL, url.Values{})
	if err != nil {
		if rerr := s.Delete(ctx, key); rerr != nil {
			log.Warnf("remove unlinked %s: %v", key, rerr)
		}
		return Object{}, fmt.Errorf("presign photo: %w", err)
	}
	return Object{Key: key, URL: u.String()}, nil
}

// Delete removes the object for key.
func (s *MinIOStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove photo: %w", err)
	}
	log.Infof("removed %s", key)
	return nil
}

// Open returns the stored object for key.
func (s *MinIOStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return obj, nil
}
