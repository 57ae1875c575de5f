package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	createIn []*s3.CreateBucketInput
	listIn   []*s3.ListObjectsV2Input
	getIn    []*s3.GetObjectInput
	putIn    []*s3.PutObjectInput
	putBody  []byte

	pages   []*s3.ListObjectsV2Output
	getBody string
	err     error
}

func (f *fakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createIn = append(f.createIn, in)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listIn = append(f.listIn, in)
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[len(f.listIn)-1]
	return page, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.getIn = append(f.getIn, in)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(f.getBody))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = append(f.putIn, in)
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.putBody = b
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3CreateBucket(t *testing.T) {
	t.Run("us-east-1 sends no location constraint", func(t *testing.T) {
		fake := &fakeS3{}
		store := newS3Store(fake, "photos", "us-east-1")

		require.NoError(t, store.CreateBucket(context.Background()))
		require.Len(t, fake.createIn, 1)
		assert.Equal(t, "photos", aws.ToString(fake.createIn[0].Bucket))
		assert.Nil(t, fake.createIn[0].CreateBucketConfiguration)
	})

	t.Run("other regions send a location constraint", func(t *testing.T) {
		fake := &fakeS3{}
		store := newS3Store(fake, "photos", "eu-west-1")

		require.NoError(t, store.CreateBucket(context.Background()))
		require.NotNil(t, fake.createIn[0].CreateBucketConfiguration)
		assert.Equal(t, types.BucketLocationConstraint("eu-west-1"),
			fake.createIn[0].CreateBucketConfiguration.LocationConstraint)
	})

	t.Run("sdk error is returned unchanged", func(t *testing.T) {
		sdkErr := &types.BucketAlreadyOwnedByYou{}
		store := newS3Store(&fakeS3{err: sdkErr}, "photos", "us-east-1")

		err := store.CreateBucket(context.Background())
		assert.Same(t, sdkErr, err)
		assert.True(t, IsBucketExists(err))
	})
}

func TestS3ListObjectsFollowsPages(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents: []types.Object{
				{Key: aws.String("u1/a.jpg"), Size: aws.Int64(10), ETag: aws.String(`"e1"`), LastModified: &now},
			},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents: []types.Object{
				{Key: aws.String("u1/b.png"), Size: aws.Int64(20)},
			},
			IsTruncated: aws.Bool(false),
		},
	}}
	store := newS3Store(fake, "photos", "us-east-1")

	objs, err := store.ListObjects(context.Background(), "u1/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, ObjectInfo{Key: "u1/a.jpg", Size: 10, ETag: "e1", LastModified: now}, objs[0])
	assert.Equal(t, "u1/b.png", objs[1].Key)

	require.Len(t, fake.listIn, 2)
	assert.Equal(t, "u1/", aws.ToString(fake.listIn[0].Prefix))
	assert.Equal(t, "photos", aws.ToString(fake.listIn[0].Bucket))
	assert.Equal(t, "next", aws.ToString(fake.listIn[1].ContinuationToken))
}

func TestS3ListObjectsError(t *testing.T) {
	sdkErr := errors.New("access denied")
	store := newS3Store(&fakeS3{err: sdkErr}, "photos", "us-east-1")

	objs, err := store.ListObjects(context.Background(), "")
	assert.Nil(t, objs)
	assert.Same(t, sdkErr, err)
}

func TestS3GetObject(t *testing.T) {
	fake := &fakeS3{getBody: "jpeg-bytes"}
	store := newS3Store(fake, "photos", "us-east-1")

	data, err := store.GetObject(context.Background(), "u1/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
	assert.Equal(t, "photos", aws.ToString(fake.getIn[0].Bucket))
	assert.Equal(t, "u1/a.jpg", aws.ToString(fake.getIn[0].Key))
}

func TestS3GetObjectMissing(t *testing.T) {
	sdkErr := &types.NoSuchKey{}
	store := newS3Store(&fakeS3{err: sdkErr}, "photos", "us-east-1")

	_, err := store.GetObject(context.Background(), "nope")
	assert.Same(t, sdkErr, err)
	assert.True(t, IsNotFound(err))
}

func TestS3WriteObject(t *testing.T) {
	fake := &fakeS3{}
	store := newS3Store(fake, "photos", "us-east-1")

	err := store.WriteObject(context.Background(), []byte("png"), "image/png", "u1/b.png")
	require.NoError(t, err)
	require.Len(t, fake.putIn, 1)
	in := fake.putIn[0]
	assert.Equal(t, "photos", aws.ToString(in.Bucket))
	assert.Equal(t, "u1/b.png", aws.ToString(in.Key))
	assert.Equal(t, "image/png", aws.ToString(in.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(in.ContentLength))
	assert.Equal(t, []byte("png"), fake.putBody)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "", endpointURL("", true))
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}
