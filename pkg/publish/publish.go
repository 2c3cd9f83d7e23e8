// Package publish uploads saved frames to S3.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

var contentTypes = map[string]string{
	".ppm": "image/x-portable-pixmap",
	".png": "image/png",
}

// Uploader puts files under s3://Bucket/Prefix/.
type Uploader struct {
	api    s3manageriface.UploaderAPI
	bucket string
	prefix string
}

// New creates an uploader using the default AWS credential chain.
func New(region, bucket, prefix string) (*Uploader, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return NewWithAPI(s3manager.NewUploader(sess), bucket, prefix), nil
}

func NewWithAPI(api s3manageriface.UploaderAPI, bucket, prefix string) *Uploader {
	return &Uploader{api: api, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a local file.
func (u *Uploader) Key(file string) string {
	return path.Join(u.prefix, filepath.Base(file))
}

// Upload sends file and returns the object location.
func (u *Uploader) Upload(ctx context.Context, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	in := &s3manager.UploadInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.Key(file)),
		Body:   f,
	}
	if ct, ok := contentTypes[filepath.Ext(file)]; ok {
		in.ContentType = aws.String(ct)
	}
	out, err := u.api.UploadWithContext(ctx, in)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", file, u.bucket, err)
	}
	return out.Location, nil
}
