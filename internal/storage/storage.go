// Package storage is the content-addressed ciphertext blob store backing
// internal/envelope: every object key is a file_id (a SHA3-256 content
// hash), and the upload path checks Exists before Put, so two uploads of
// identical plaintext write the object once.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Service struct {
	client       *minio.Client
	bucketName   string
	bucketRegion string
}

// NewService creates a new content-addressed storage service.
func NewService() (*Service, error) {
	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000" // Default MinIO local
	}

	accessKey := os.Getenv("S3_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin" // Default MinIO credentials
	}

	secretKey := os.Getenv("S3_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin" // Default MinIO credentials
	}

	bucketName := os.Getenv("S3_BUCKET")
	if bucketName == "" {
		bucketName = "qshare-files"
	}

	bucketRegion := os.Getenv("S3_REGION")
	if bucketRegion == "" {
		bucketRegion = "us-east-1"
	}

	useSSL := os.Getenv("S3_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	service := &Service{
		client:       client,
		bucketName:   bucketName,
		bucketRegion: bucketRegion,
	}

	if err := service.ensureBucket(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}

	return service, nil
}

// ensureBucket creates the bucket if it doesn't exist
func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{
			Region: s.bucketRegion,
		})
		if err != nil {
			return err
		}
		fmt.Printf("[Storage] Created bucket: %s\n", s.bucketName)
	}

	return nil
}

// Exists reports whether a blob with the given content-addressed key is
// already stored (used by the upload path to skip re-encrypting a
// duplicate).
func (s *Service) Exists(ctx context.Context, fileID string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, fileID, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// Put stores an encrypted blob under its content-addressed key.
func (s *Service) Put(ctx context.Context, fileID string, ciphertext []byte) error {
	_, err := s.client.PutObject(ctx, s.bucketName, fileID,
		bytes.NewReader(ciphertext), int64(len(ciphertext)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to store blob %s: %w", fileID, err)
	}
	return nil
}

// Get retrieves an encrypted blob by its content-addressed key.
func (s *Service) Get(ctx context.Context, fileID string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, fileID, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", fileID, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", fileID, err)
	}
	return data, nil
}

// Delete removes a blob by its content-addressed key.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, fileID, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", fileID, err)
	}
	return nil
}
