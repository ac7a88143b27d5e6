// Package storage handles message media. Clients send images inline as base64
// data URIs; the service decodes them into the MinIO bucket and hands back a
// public object URL for the message record.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "chatlink-backend/pkg/errors"
)

// Service handles media storage operations
type Service struct {
	minioClient   *minio.Client
	bucketName    string
	publicBaseURL string
}

// NewService creates a new storage service
func NewService(endpoint, accessKey, secretKey, bucketName, publicBaseURL string, useSSL bool) (*Service, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Service{
		minioClient:   minioClient,
		bucketName:    bucketName,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// UploadImage decodes a base64 image payload, stores it under the owner's
// prefix and returns the public URL of the object. The payload may carry a
// data URI prefix ("data:image/png;base64,...") or be bare base64.
func (s *Service) UploadImage(ctx context.Context, ownerID uuid.UUID, data string) (string, error) {
	contentType, encoded := splitDataURI(data)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", apperrors.InvalidInputError("Invalid base64 image payload")
	}

	objectKey := fmt.Sprintf("messages/%s/%s%s", ownerID, uuid.New(), extensionFor(contentType))

	_, err = s.minioClient.PutObject(ctx, s.bucketName, objectKey,
		bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucketName, objectKey), nil
}

// splitDataURI separates the MIME type from the base64 body of a data URI.
// Bare base64 input defaults to image/png.
func splitDataURI(data string) (contentType, encoded string) {
	contentType = "image/png"
	encoded = data

	if !strings.HasPrefix(data, "data:") {
		return contentType, encoded
	}

	head, body, found := strings.Cut(data, ",")
	if !found {
		return contentType, encoded
	}
	encoded = body

	mime := strings.TrimPrefix(head, "data:")
	mime = strings.TrimSuffix(mime, ";base64")
	if mime != "" {
		contentType = mime
	}
	return contentType, encoded
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
