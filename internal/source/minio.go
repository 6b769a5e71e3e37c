package source

import (
	"context"
	"fmt"
	"path"
	"strings"

	"omrflow/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Secure        bool
	Bucket        string
	Prefix        string
	ArchivePrefix string
}

// MinIO watches one prefix of an S3-compatible bucket. Object keys are ids.
type MinIO struct {
	client *minio.Client
	opts   MinIOOptions
}

func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("minio source: bucket is empty")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &MinIO{client: client, opts: opts}, nil
}

func (m *MinIO) List(ctx context.Context) ([]models.FileRef, error) {
	var out []models.FileRef
	for obj := range m.client.ListObjects(ctx, m.opts.Bucket, minio.ListObjectsOptions{Prefix: m.opts.Prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", m.opts.Bucket, m.opts.Prefix, obj.Err)
		}
		if ref, ok := objectRef(obj); ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

func objectRef(obj minio.ObjectInfo) (models.FileRef, bool) {
	if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
		return models.FileRef{}, false
	}
	return models.FileRef{
		ID:           obj.Key,
		Name:         path.Base(obj.Key),
		MIMEType:     obj.ContentType,
		ModifiedTime: obj.LastModified.UTC(),
		Size:         obj.Size,
	}, true
}

func (m *MinIO) Download(ctx context.Context, f models.FileRef, dst string) error {
	if err := m.client.FGetObject(ctx, m.opts.Bucket, f.ID, dst, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", f.ID, err)
	}
	return nil
}

// Archive copies the object under the archive prefix and removes the original.
func (m *MinIO) Archive(ctx context.Context, f models.FileRef) error {
	if m.opts.ArchivePrefix == "" {
		return nil
	}
	dst := minio.CopyDestOptions{Bucket: m.opts.Bucket, Object: m.opts.ArchivePrefix + path.Base(f.ID)}
	src := minio.CopySrcOptions{Bucket: m.opts.Bucket, Object: f.ID}
	if _, err := m.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("copy %s to archive: %w", f.ID, err)
	}
	if err := m.client.RemoveObject(ctx, m.opts.Bucket, f.ID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove archived %s: %w", f.ID, err)
	}
	return nil
}
