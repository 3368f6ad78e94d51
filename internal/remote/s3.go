package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"crmsync/internal/domain"
)

// Compile-time check: S3Store implements the remote store contract.
var _ domain.RemoteStore = (*S3Store)(nil)

// S3Options configures an S3-compatible object storage backend.
type S3Options struct {
	KeyID    string
	Secret   string
	Endpoint string // host only, e.g. "fsn1.your-objectstorage.com"
	Region   string
	Bucket   string
	Prefix   string // optional key prefix acting as the remote folder
}

// S3Store keeps table files as objects under an optional prefix. Object
// stores have no append, so AppendRows is read-verify-merge-overwrite with a
// single final PutObject.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3-backed store using static credentials and
// path-style addressing, which S3-compatible providers require.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, domain.ErrValidation("s3 bucket is required")
	}
	client := s3.New(s3.Options{
		Region: opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			opts.KeyID, opts.Secret, "",
		),
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s", opts.Endpoint)),
		UsePathStyle: true,
	})
	return &S3Store{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (s *S3Store) key(tableName string) string {
	return path.Join(s.prefix, fileName(tableName))
}

// FindByName checks the object's existence with a HEAD request.
func (s *S3Store) FindByName(ctx context.Context, tableName string) (*domain.RemoteFileHandle, error) {
	key := s.key(tableName)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "head %q", key)
	}
	return &domain.RemoteFileHandle{TableName: tableName, RemoteID: key}, nil
}

// Read downloads and decodes the object, refreshing the handle.
func (s *S3Store) Read(ctx context.Context, handle *domain.RemoteFileHandle) (*domain.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle.RemoteID),
	})
	if err != nil {
		return nil, classifyS3Error(err, "get %q", handle.RemoteID)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
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

// Create uploads the snapshot as a new object. Object stores overwrite on
// PUT, so create and replace share the write path.
func (s *S3Store) Create(ctx context.Context, tableName string, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	handle := &domain.RemoteFileHandle{TableName: tableName, RemoteID: s.key(tableName)}
	return s.Replace(ctx, handle, snapshot)
}

// Replace overwrites the object with the full snapshot in one PutObject.
func (s *S3Store) Replace(ctx context.Context, handle *domain.RemoteFileHandle, snapshot *domain.Snapshot) (*domain.RemoteFileHandle, error) {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(handle.RemoteID),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, classifyS3Error(err, "put %q", handle.RemoteID)
	}
	refreshHandle(handle, snapshot)
	return handle, nil
}

// AppendRows downloads the object, verifies the rows against its current
// signature, and overwrites it with the merged content.
func (s *S3Store) AppendRows(ctx context.Context, handle *domain.RemoteFileHandle, rows []domain.Row) (*domain.RemoteFileHandle, error) {
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

// classifyS3Error maps S3 API errors into domain errors. Missing keys
// surface as NoSuchKey (GET) or NotFound (HEAD); everything else is treated
// as transient.
func classifyS3Error(err error, format string, args ...any) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return domain.ErrNotFound("%s: not found", fmt.Sprintf(format, args...))
		}
	}
	return domain.ErrRemoteUnavailable(err, format, args...)
}
