package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"crmsync/internal/domain"
)

// Compile-time check: AzureStore implements the remote store contract.
var _ domain.RemoteStore = (*AzureStore)(nil)

// AzureOptions configures an Azure Blob Storage backend. Only account-key
// authentication is supported.
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
}

// AzureStore keeps table files as blobs in one container. Blob storage has
// no usable append for CSV files, so AppendRows is
// read-verify-merge-overwrite with a single final upload.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates an Azure-backed store from shared-key credentials.
func NewAzureStore(opts AzureOptions) (*AzureStore, error) {
	if opts.Container == "" {
		return nil, domain.ErrValidation("azure container is required")
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: opts.Container}, nil
}

// FindByName checks the blob's existence via its properties.
func (s *AzureStore) FindByName(ctx context.Context, tableName string) (*domain.RemoteFileHandle, error) {
	name := fileName(tableName)
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(name)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		return nil, classifyAzureError(err, "head %q", name)
	}
	return &domain.RemoteFileHandle{TableName: tableName, RemoteID: name}, nil
}

// Read downloads and decodes the blob, refreshing the handle.
func (s *AzureStore) Read(ctx context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, handle.RemoteID, nil)
	if err != nil {
		return nil, classifyAzureError(err, "download %q", handle.RemoteID)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ErrRemoteUnavailable(err, "read %q body", handle.RemoteID)
	}
	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	refreshHandle(handle, snapshot)
	return snapshot, nil
}

// Create uploads the snapshot as a new blob. Uploads overwrite, so create
// and replace share the write path.
func (s *AzureStore) Create(ctx context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	handle := &domain.RemoteFileHandle{TableName: tableName, RemoteID: fileName(tableName)}
	return s.Replace(ctx, handle, snapshot)
}

// Replace overwrites the blob with the full snapshot in one upload.
func (s *AzureStore) Replace(ctx context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, handle.RemoteID, data, nil); err != nil {
		return nil, classifyAzureError(err, "upload %q", handle.RemoteID)
	}
	refreshHandle(handle, snapshot)
	return handle, nil
}

// AppendRows downloads the blob, verifies the rows against its current
// signature, and overwrites it with the merged content.
func (s *AzureStore) AppendRows(ctx context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error) {
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

// classifyAzureError maps Azure Blob errors into domain errors: missing
// blobs and containers are NotFound, everything else is treated as
// transient.
func classifyAzureError(err error, format string, args ...any) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return domain.ErrNotFound("%s: not found", fmt.Sprintf(format, args...))
	}
	return domain.ErrRemoteUnavailable(err, format, args...)
}
