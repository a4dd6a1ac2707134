// pkg/mirror/s3.go

// Package mirror copies saved invoices to secondary storage.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/invoicing-desk/pkg/invoice"
)

// Uploader is the part of s3manager.Uploader that S3 needs.
type Uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3 uploads the document and metadata of every saved invoice to a bucket.
type S3 struct {
	uploader Uploader
	bucket   string
	prefix   string
}

// NewS3 creates an S3 mirror using the default AWS credential chain.
func NewS3(region, bucket, prefix string) (*S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: aws session: %w", err)
	}
	return NewS3WithUploader(s3manager.NewUploader(sess), bucket, prefix), nil
}

// NewS3WithUploader creates an S3 mirror around an existing uploader.
func NewS3WithUploader(u Uploader, bucket, prefix string) *S3 {
	return &S3{uploader: u, bucket: bucket, prefix: prefix}
}

func (m *S3) Name() string { return "s3://" + m.bucket + "/" + m.prefix }

// Mirror uploads <prefix><key>.pdf and <prefix><key>.json.
func (m *S3) Mirror(ctx context.Context, key string, rec *invoice.Record, document []byte) error {
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("mirror: encode metadata: %w", err)
	}
	uploads := []struct {
		name, contentType string
		body              []byte
	}{
		{key + ".pdf", "application/pdf", document},
		{key + ".json", "application/json", meta},
	}
	for _, u := range uploads {
		_, err := m.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket:      aws.String(m.bucket),
			Key:         aws.String(m.prefix + u.name),
			Body:        bytes.NewReader(u.body),
			ContentType: aws.String(u.contentType),
		})
		if err != nil {
			return fmt.Errorf("mirror: upload %s: %w", u.name, err)
		}
	}
	return nil
}
