// Package archive provides an optional, best-effort off-site mirror of
// completed media files. It is never the source of truth — local files
// remain authoritative and retention deletes them regardless of the
// archive's state — it only gives an operator a second copy.
//
// The backend-selection factory pattern (a narrow capability interface
// picked by a config string, "gdrive" vs "s3"/"r2") is adapted from the
// teacher's internal/storage/factory.go + server/internal/storage/types.go
// CommonStorage interface, narrowed to the one capability this pipeline
// actually needs: upload-after-completion.
package archive

import "context"

// Mirror is the narrow capability an archive backend exposes: upload a
// completed file and report whether it's already there.
type Mirror interface {
	// Upload copies localPath to the backend under remoteKey. Errors are
	// logged by the caller and never fail the pipeline operation that
	// triggered them.
	Upload(ctx context.Context, localPath, remoteKey string) error
	// Exists reports whether remoteKey is already mirrored, letting
	// callers skip a redundant upload.
	Exists(ctx context.Context, remoteKey string) (bool, error)
}

// Backend names which Mirror implementation New constructs.
type Backend string

const (
	BackendNone   Backend = ""
	BackendGDrive Backend = "gdrive"
	BackendS3     Backend = "s3"
)

// NoopMirror is used when no archive backend is configured; every call is a
// silent no-op so callers never need a nil check.
type NoopMirror struct{}

func (NoopMirror) Upload(ctx context.Context, localPath, remoteKey string) error { return nil }
func (NoopMirror) Exists(ctx context.Context, remoteKey string) (bool, error)    { return false, nil }
