package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"crmsync/internal/domain"
)

// Compile-time check: DriveStore implements the remote store contract.
var _ domain.RemoteStore = (*DriveStore)(nil)

// DriveStore keeps table files in a single Google Drive folder, the backend
// the CRM export historically used. Drive cannot append to a file in place,
// so AppendRows is read-verify-merge-overwrite; the final media update is a
// single whole-file write.
type DriveStore struct {
	svc      *drive.Service
	folderID string
}

// NewDriveStore creates a Drive-backed store scoped to the given folder,
// authenticating with a service-account credentials file.
func NewDriveStore(ctx context.Context, credentialsFile, folderID string) (*DriveStore, error) {
	if folderID == "" {
		return nil, domain.ErrValidation("drive folder ID is required")
	}
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &DriveStore{svc: svc, folderID: folderID}, nil
}

// FindByName locates the table's file inside the folder. Duplicate names can
// exist on Drive; the most recently modified file wins, matching the export
// convention.
func (s *DriveStore) FindByName(ctx context.Context, tableName string) (*domain.RemoteFileHandle, error) {
	name := fileName(tableName)
	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeDriveQuery(name), escapeDriveQuery(s.folderID))

	list, err := s.svc.Files.List().
		Q(query).
		Spaces("drive").
		Fields("files(id, name, modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError(err, "list %q", name)
	}
	if len(list.Files) == 0 {
		return nil, domain.ErrNotFound("remote file %q not found", name)
	}
	return &domain.RemoteFileHandle{TableName: tableName, RemoteID: list.Files[0].Id}, nil
}

// Read downloads and decodes the file, refreshing the handle's signature and
// row count.
func (s *DriveStore) Read(ctx context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error) {
	resp, err := s.svc.Files.Get(handle.RemoteID).Context(ctx).Download()
	if err != nil {
		return nil, classifyDriveError(err, "download %q", fileName(handle.TableName))
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrRemoteUnavailable(err, "read %q body", fileName(handle.TableName))
	}
	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	refreshHandle(handle, snapshot)
	return snapshot, nil
}

// Create uploads the snapshot as a new file in the folder.
func (s *DriveStore) Create(ctx context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	meta := &drive.File{
		Name:     fileName(tableName),
		Parents:  []string{s.folderID},
		MimeType: "text/csv",
	}
	created, err := s.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType("text/csv")).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError(err, "create %q", fileName(tableName))
	}

	handle := &domain.RemoteFileHandle{TableName: tableName, RemoteID: created.Id}
	refreshHandle(handle, snapshot)
	return handle, nil
}

// Replace overwrites the file's media in place, keeping its ID.
func (s *DriveStore) Replace(ctx context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}

	_, err = s.svc.Files.Update(handle.RemoteID, &drive.File{}).
		Media(bytes.NewReader(data), googleapi.ContentType("text/csv")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyDriveError(err, "replace %q", fileName(handle.TableName))
	}

	refreshHandle(handle, snapshot)
	return handle, nil
}

// AppendRows downloads the file, verifies the rows against its current
// signature, and overwrites it with the merged content.
func (s *DriveStore) AppendRows(ctx context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error) {
	existing, err := s.Read(ctx, handle)
	if err != nil {
		return nil, err
	}
	merged, err := appendToSnapshot(existing, rows)
	if err != nil {
		return nil, err
	}
	return s.Replace(ctx, handle, merged)
}

// escapeDriveQuery escapes single quotes and backslashes for Drive query
// string literals.
func escapeDriveQuery(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}

// classifyDriveError maps Drive API errors into domain errors: 404 is
// NotFound, everything else is treated as transient.
func classifyDriveError(err error, format string, args ...any) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return domain.ErrNotFound("%s: not found", fmt.Sprintf(format, args...))
	}
	return domain.ErrRemoteUnavailable(err, format, args...)
}
