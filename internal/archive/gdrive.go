package archive

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDriveScopes is the OAuth scope the mirror needs: file create/read, not
// full drive access.
var GDriveScopes = []string{drive.DriveFileScope}

// GDriveConfig configures the Google Drive mirror backend.
type GDriveConfig struct {
	FolderID string // parent folder remoteKeys are uploaded into
}

// GDriveMirror uploads completed media files into a single Drive folder,
// grounded on the teacher's internal/gdrive/gdrive.go Service but narrowed
// to the Upload/Exists capabilities this pipeline needs.
type GDriveMirror struct {
	drive    *drive.Service
	folderID string
}

// NewGDriveMirror builds a GDriveMirror from the ambient application
// default credentials, matching the teacher's google.FindDefaultCredentials
// pattern.
func NewGDriveMirror(ctx context.Context, cfg GDriveConfig) (*GDriveMirror, error) {
	creds, err := google.FindDefaultCredentials(ctx, GDriveScopes...)
	if err != nil {
		return nil, fmt.Errorf("archive: find default credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("archive: create drive service: %w", err)
	}

	return &GDriveMirror{drive: svc, folderID: cfg.FolderID}, nil
}

// Upload creates a new Drive file named remoteKey under the configured
// folder. Drive does not reject same-name duplicates, so callers should
// check Exists first to avoid piling up copies across retries.
func (m *GDriveMirror) Upload(ctx context.Context, localPath, remoteKey string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{Name: remoteKey}
	if m.folderID != "" {
		meta.Parents = []string{m.folderID}
	}

	_, err = m.drive.Files.Create(meta).Media(f).Context(ctx).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("archive: upload %s: %w", remoteKey, err)
	}
	return nil
}

// Exists reports whether a file named remoteKey already sits in the
// configured folder.
func (m *GDriveMirror) Exists(ctx context.Context, remoteKey string) (bool, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", escapeDriveQuery(remoteKey))
	if m.folderID != "" {
		query += fmt.Sprintf(" and '%s' in parents", m.folderID)
	}

	result, err := m.drive.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("archive: list %s: %w", remoteKey, err)
	}
	return len(result.Files) > 0, nil
}

func escapeDriveQuery(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
