package source

import (
	"context"
	"fmt"
	"strings"

	"omrflow/internal/config"
	"omrflow/internal/models"
)

// Source is the watched storage folder: list, fetch and archive files.
type Source interface {
	List(ctx context.Context) ([]models.FileRef, error)
	Download(ctx context.Context, f models.FileRef, dst string) error
	Archive(ctx context.Context, f models.FileRef) error
}

// New builds the source selected by cfg.Source.
func New(ctx context.Context, cfg config.Config) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "local":
		return NewLocal(cfg.InboxDir, cfg.ArchiveDir), nil
	case "drive":
		return NewDrive(ctx, cfg.GoogleCredentials, cfg.DriveFolderID, cfg.DriveArchiveFolderID)
	case "minio":
		return NewMinIO(MinIOOptions{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Secure:        cfg.MinIOSecure,
			Bucket:        cfg.MinIOBucket,
			Prefix:        cfg.MinIOPrefix,
			ArchivePrefix: cfg.MinIOArchivePrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported source: %s", cfg.Source)
	}
}
