package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"omrflow/internal/models"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const driveFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size)"

// Drive watches one Google Drive folder through a service account.
type Drive struct {
	svc             *drive.Service
	folderID        string
	archiveFolderID string
}

func NewDrive(ctx context.Context, credentialsFile, folderID, archiveFolderID string) (*Drive, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive source: folder id is empty")
	}
	svc, err := drive.NewService(ctx, option.WithCredentialsFile(credentialsFile), option.WithScopes(drive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return &Drive{svc: svc, folderID: folderID, archiveFolderID: archiveFolderID}, nil
}

func (d *Drive) List(ctx context.Context) ([]models.FileRef, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != 'application/vnd.google-apps.folder'", d.folderID)
	var out []models.FileRef
	err := d.svc.Files.List().
		Q(q).
		Fields(driveFields).
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				out = append(out, driveRef(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list drive folder %s: %w", d.folderID, err)
	}
	return out, nil
}

func driveRef(f *drive.File) models.FileRef {
	ref := models.FileRef{ID: f.Id, Name: f.Name, MIMEType: f.MimeType, Size: f.Size}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		ref.ModifiedTime = t.UTC()
	}
	return ref
}

func (d *Drive) Download(ctx context.Context, f models.FileRef, dst string) error {
	resp, err := d.svc.Files.Get(f.ID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("download %s: %w", f.Name, err)
	}
	defer resp.Body.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return out.Close()
}

// Archive re-parents the file into the processed folder, when one is set.
func (d *Drive) Archive(ctx context.Context, f models.FileRef) error {
	if d.archiveFolderID == "" {
		return nil
	}
	_, err := d.svc.Files.Update(f.ID, &drive.File{}).
		AddParents(d.archiveFolderID).
		RemoveParents(d.folderID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move %s to processed folder: %w", f.Name, err)
	}
	return nil
}
