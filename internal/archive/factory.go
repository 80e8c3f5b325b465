package archive

import (
	"context"
	"fmt"

	"channelcast/internal/config"
)

// New selects a Mirror implementation from cfg.Backend, mirroring the
// teacher's storage.StorageFactory.CreateStorage backend switch.
func New(ctx context.Context, cfg config.Archive) (Mirror, error) {
	switch Backend(cfg.Backend) {
	case BackendNone:
		return NoopMirror{}, nil
	case BackendS3:
		return NewS3Mirror(ctx, S3Config{
			Region:      cfg.S3Region,
			Bucket:      cfg.S3Bucket,
			EndpointURL: cfg.S3EndpointURL,
		})
	case BackendGDrive:
		return NewGDriveMirror(ctx, GDriveConfig{FolderID: cfg.GDriveFolderID})
	default:
		return nil, fmt.Errorf("archive: unknown backend %q", cfg.Backend)
	}
}
