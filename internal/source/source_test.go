package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"omrflow/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
)

func TestLocalListDownloadArchive(t *testing.T) {
	inbox, archive := t.TempDir(), filepath.Join(t.TempDir(), "processed")
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "ana.jpg"), []byte("jpeg"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(inbox, "sub"), 0o755))

	src := NewLocal(inbox, archive)
	files, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "ana.jpg", files[0].ID)
	require.EqualValues(t, 4, files[0].Size)

	dst := filepath.Join(t.TempDir(), "copy.jpg")
	require.NoError(t, src.Download(context.Background(), files[0], dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "jpeg", string(b))

	require.NoError(t, src.Archive(context.Background(), files[0]))
	_, err = os.Stat(filepath.Join(archive, "ana.jpg"))
	require.NoError(t, err)
	files, err = src.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestLocalArchiveKeepsExistingCopy(t *testing.T) {
	inbox, archive := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(archive, "ana.jpg"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "ana.jpg"), []byte("new"), 0o644))

	src := NewLocal(inbox, archive)
	files, err := src.List(context.Background())
	require.NoError(t, err)
	require.NoError(t, src.Archive(context.Background(), files[0]))

	entries, err := os.ReadDir(archive)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestLocalMissingInboxIsEmpty(t *testing.T) {
	files, err := NewLocal(filepath.Join(t.TempDir(), "nope"), "").List(context.Background())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestObjectRef(t *testing.T) {
	at := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	ref, ok := objectRef(minio.ObjectInfo{Key: "inbox/gabarito_52.png", LastModified: at, Size: 10})
	require.True(t, ok)
	require.Equal(t, "inbox/gabarito_52.png", ref.ID)
	require.Equal(t, "gabarito_52.png", ref.Name)
	require.True(t, ref.ModifiedTime.Equal(at))

	_, ok = objectRef(minio.ObjectInfo{Key: "inbox/2025/"})
	require.False(t, ok)
}

func TestDriveRef(t *testing.T) {
	ref := driveRef(&drive.File{Id: "1AbC", Name: "bia.pdf", MimeType: "application/pdf", ModifiedTime: "2025-03-01T12:30:00.000Z", Size: 2048})
	require.Equal(t, "1AbC", ref.ID)
	require.Equal(t, 2025, ref.ModifiedTime.Year())
	require.EqualValues(t, 2048, ref.Size)
}

func TestNewSelectsSource(t *testing.T) {
	s, err := New(context.Background(), config.Config{Source: "local", InboxDir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &Local{}, s)

	s, err = New(context.Background(), config.Config{Source: "minio", MinIOEndpoint: "localhost:9000", MinIOBucket: "cartoes"})
	require.NoError(t, err)
	require.IsType(t, &MinIO{}, s)

	_, err = New(context.Background(), config.Config{Source: "ftp"})
	require.Error(t, err)

	_, err = New(context.Background(), config.Config{Source: "drive"})
	require.Error(t, err)
}
