package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubNewStore(t *testing.T) *int {
	t.Helper()
	builds := 0
	orig := newStore
	newStore = func(_ context.Context, opts Options) (Store, error) {
		builds++
		return newMinioStore(&fakeMinio{}, opts.Bucket, opts.Region), nil
	}
	t.Cleanup(func() {
		newStore = orig
		Reconnect()
	})
	Reconnect()
	return &builds
}

func TestSharedReusesClient(t *testing.T) {
	builds := stubNewStore(t)
	opts := Options{Backend: BackendMinio, Bucket: "photos", AccessKey: "ak"}

	first, err := Shared(context.Background(), opts)
	require.NoError(t, err)
	second, err := Shared(context.Background(), opts)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *builds)
}

func TestSharedRebuildsOnNewOptions(t *testing.T) {
	builds := stubNewStore(t)

	first, err := Shared(context.Background(), Options{Bucket: "a"})
	require.NoError(t, err)
	second, err := Shared(context.Background(), Options{Bucket: "b"})
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, "b", second.Bucket())
	assert.Equal(t, 2, *builds)
}

func TestReconnectDropsClient(t *testing.T) {
	builds := stubNewStore(t)
	opts := Options{Bucket: "photos"}

	first, err := Shared(context.Background(), opts)
	require.NoError(t, err)
	Reconnect()
	second, err := Shared(context.Background(), opts)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, *builds)
}

func TestSharedBuildErrorIsNotCached(t *testing.T) {
	stubNewStore(t)
	buildErr := errors.New("bad endpoint")
	newStore = func(context.Context, Options) (Store, error) { return nil, buildErr }

	_, err := Shared(context.Background(), Options{Bucket: "photos"})
	assert.Same(t, buildErr, err)
	assert.Nil(t, shared.store)
}

func TestSharedConcurrentAccess(t *testing.T) {
	builds := stubNewStore(t)
	opts := Options{Bucket: "photos"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Shared(context.Background(), opts)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, *builds)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "ftp", Bucket: "photos"})
	assert.ErrorContains(t, err, `unknown backend "ftp"`)

	_, err = New(context.Background(), Options{Backend: BackendMinio})
	assert.ErrorContains(t, err, "bucket name is required")
}

func TestSharedProviderFollowsReconnectAndNewOptions(t *testing.T) {
	builds := stubNewStore(t)
	opts := Options{Bucket: "photos", AccessKey: "old"}
	provide := SharedProvider(func() Options { return opts })

	first, err := provide(context.Background())
	require.NoError(t, err)
	again, err := provide(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)

	Reconnect()
	afterReconnect, err := provide(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, afterReconnect)

	opts = Options{Bucket: "rotated", AccessKey: "new"}
	rotated, err := provide(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", rotated.Bucket())
	assert.Equal(t, 3, *builds)
}
