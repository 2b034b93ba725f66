package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; GCS_CREDENTIALS_JSON is for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func defaultBucket(bucket string) (string, error) {
	if bucket != "" {
		return bucket, nil
	}
	bucket = os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucket, nil
}

var allowedMimeTypes = map[string]bool{
	"application/pdf":          true,
	"application/msword":       true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"image/jpeg": true,
	"image/png":  true,
}

// DetectMimeType sniffs data, fixing up the zip based office formats by extension.
func DetectMimeType(objectName string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" {
		if strings.HasSuffix(objectName, ".docx") {
			mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		} else if strings.HasSuffix(objectName, ".xlsx") {
			mimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
	}
	return mimeType
}

// UploadFileToGCS stores a document (JD, resume) after checking its type.
func UploadFileToGCS(ctx context.Context, objectName string, fileContent io.Reader) error {
	fileData, err := io.ReadAll(fileContent)
	if err != nil {
		return fmt.Errorf("failed to read file content: %v", err)
	}
	mimeType := DetectMimeType(objectName, fileData)
	if !allowedMimeTypes[mimeType] {
		return NewValidationError("unsupported file type: %s", mimeType)
	}
	return UploadBytesToGCS(ctx, "", objectName, fileData, mimeType)
}

func UploadBytesToGCS(ctx context.Context, bucket string, objectName string, data []byte, contentType string) error {
	bucketName, err := defaultBucket(bucket)
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}
	return nil
}

// DownloadFromGCS reads a whole object. Missing objects yield ErrorRecordNotFound.
func DownloadFromGCS(ctx context.Context, bucket string, objectName string) ([]byte, error) {
	bucketName, err := defaultBucket(bucket)
	if err != nil {
		return nil, err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func DeleteObjectFromGCS(ctx context.Context, bucket string, objectName string) error {
	bucketName, err := defaultBucket(bucket)
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucketName).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// ObjectStore is the blob surface the mail workflow and uploads need.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
}

// GCSObjectStore is the ObjectStore backed by Google Cloud Storage.
type GCSObjectStore struct{}

func (GCSObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	return DownloadFromGCS(ctx, bucket, key)
}

func (GCSObjectStore) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	return UploadBytesToGCS(ctx, bucket, key, data, contentType)
}

func (GCSObjectStore) Delete(ctx context.Context, bucket, key string) error {
	return DeleteObjectFromGCS(ctx, bucket, key)
}
