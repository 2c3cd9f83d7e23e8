package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	s3manageriface.UploaderAPI
	inputs []*s3manager.UploadInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3manager.UploadOutput{Location: "https://bucket.s3.amazonaws.com/" + *in.Key}, nil
}

func TestUpload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "frame1.ppm")
	require.NoError(t, os.WriteFile(file, []byte("P6\n1 1\n255\nabc"), 0o644))

	api := &fakeUploader{}
	u := NewWithAPI(api, "bucket", "frames/run-1")

	loc, err := u.Upload(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/frames/run-1/frame1.ppm", loc)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "bucket", aws.StringValue(in.Bucket))
	assert.Equal(t, "frames/run-1/frame1.ppm", aws.StringValue(in.Key))
	assert.Equal(t, "image/x-portable-pixmap", aws.StringValue(in.ContentType))
	assert.Equal(t, []byte("P6\n1 1\n255\nabc"), api.bodies[0])
}

func TestUploadErrors(t *testing.T) {
	u := NewWithAPI(&fakeUploader{err: errors.New("access denied")}, "bucket", "")

	_, err := u.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.ppm"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "frame2.png")
	require.NoError(t, os.WriteFile(file, []byte{1}, 0o644))
	_, err = u.Upload(context.Background(), file)
	assert.ErrorContains(t, err, "access denied")
}

func TestKey(t *testing.T) {
	u := NewWithAPI(nil, "b", "")
	assert.Equal(t, "frame4.ppm", u.Key("/tmp/out/frame4.ppm"))
}
