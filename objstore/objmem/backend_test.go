package objmem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mockcloud/blobmock/objstore/objerr"
	"github.com/mockcloud/blobmock/objstore/objval"
)

func newTestBackend(t *testing.T, options Options) *Backend {
	backend := NewBackend(options)
	t.Cleanup(func() { require.NoError(t, backend.Reset(context.Background())) })

	return backend
}

func TestBackendCreateContainer(t *testing.T) {
	backend := newTestBackend(t, Options{})

	container, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)
	require.Equal(t, "container", container.Name)

	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
}

func TestBackendCreateContainerAlreadyExists(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)

	_, err = backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.True(t, objerr.IsAlreadyExistsError(err))

	// The duplicate attempt must not disturb the registered container.
	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
}

func TestBackendCreateContainerNameBounds(t *testing.T) {
	type test struct {
		name    string
		cname   string
		invalid bool
	}

	tests := []test{
		{name: "TooShort", cname: "ab", invalid: true},
		{name: "MinLength", cname: "abc"},
		{name: "MaxLength", cname: strings.Repeat("a", 63)},
		{name: "TooLong", cname: strings.Repeat("a", 64), invalid: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			backend := newTestBackend(t, Options{})

			_, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: test.cname})
			if test.invalid {
				require.True(t, objerr.IsInvalidNameError(err))
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestBackendPutGetBlobRoundTrip(t *testing.T) {
	backend := newTestBackend(t, Options{})

	put, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), put.ContentLength)

	got, err := backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.NoError(t, err)
	require.Same(t, put, got)

	data, err := got.Value()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestBackendPutBlobAutoCreatesContainer(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)

	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 1)
	require.Equal(t, "container", containers[0].Name)
}

func TestBackendPutBlobStrictContainerCheck(t *testing.T) {
	backend := newTestBackend(t, Options{DisableContainerAutoCreate: true})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.True(t, objerr.IsNotFoundError(err))

	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Empty(t, containers)
}

func TestBackendPutBlobAlreadyExists(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("first"),
	})
	require.NoError(t, err)

	_, err = backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("second"),
	})
	require.True(t, objerr.IsAlreadyExistsError(err))

	// The losing put must not overwrite the stored payload.
	blob, err := backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.NoError(t, err)

	data, err := blob.Value()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), data)
}

func TestBackendPutBlobNameBounds(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "ab",
		Body:      strings.NewReader("hello"),
	})
	require.True(t, objerr.IsInvalidNameError(err))

	_, err = backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      strings.Repeat("a", 64),
		Body:      strings.NewReader("hello"),
	})
	require.True(t, objerr.IsInvalidNameError(err))

	// Container names are held to the same bounds, auto-create must not register an invalid one
	_, err = backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "ab",
		Name:      "blob.txt",
		Body:      strings.NewReader("hello"),
	})
	require.True(t, objerr.IsInvalidNameError(err))
}

func TestBackendPutBlobNestedPathKey(t *testing.T) {
	backend := newTestBackend(t, Options{})

	put, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "file.txt",
		Path:      "a/b/",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, "a/b/file.txt", put.Key())

	// A blob with the same leaf name under a different path is a different identity.
	_, err = backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "file.txt",
		Body:      strings.NewReader("other"),
	})
	require.NoError(t, err)

	got, err := backend.GetBlob(context.Background(), GetBlobOptions{
		Container: "container",
		Name:      "file.txt",
		Path:      "a/b/",
	})
	require.NoError(t, err)
	require.Same(t, put, got)
}

func TestBackendPutBlobInheritsContainerDefaultLock(t *testing.T) {
	backend := newTestBackend(t, Options{})

	container, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)

	container.Locking = objval.ContainerLockingStatus{
		Enabled:     true,
		DefaultMode: objval.LockModeCompliance,
		DefaultDays: 30,
	}

	blob, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, objval.LockModeCompliance, blob.LockMode)
	require.NotNil(t, blob.LockUntil)
}

func TestBackendPutBlobObjectLockEnabled(t *testing.T) {
	backend := newTestBackend(t, Options{})

	// The flag is part of construction, it's set before the blob is ever published
	blob, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container:         "container",
		Name:              "key",
		Body:              strings.NewReader("hello"),
		ObjectLockEnabled: true,
	})
	require.NoError(t, err)
	require.True(t, blob.ObjectLockEnabled)

	fetched, err := backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.NoError(t, err)
	require.True(t, fetched.ObjectLockEnabled)
}

func TestBackendGetBlobMissing(t *testing.T) {
	backend := newTestBackend(t, Options{})

	// Unregistered container.
	_, err := backend.GetBlob(context.Background(), GetBlobOptions{Container: "nosuch", Name: "key"})
	require.True(t, objerr.IsNotFoundError(err))

	// Registered container, unregistered key.
	_, err = backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)

	_, err = backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.True(t, objerr.IsNotFoundError(err))
}

func TestBackendConcurrentPutsExactlyOneWinner(t *testing.T) {
	const writers = 16

	backend := newTestBackend(t, Options{})

	var (
		wg        sync.WaitGroup
		lock      sync.Mutex
		succeeded int
		exists    int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := backend.PutBlob(context.Background(), PutBlobOptions{
				Container: "container",
				Name:      "key",
				Body:      strings.NewReader("hello"),
			})

			lock.Lock()
			defer lock.Unlock()

			switch {
			case err == nil:
				succeeded++
			case objerr.IsAlreadyExistsError(err):
				exists++
			default:
				require.FailNow(t, "unexpected error", err)
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 1, succeeded)
	require.Equal(t, writers-1, exists)
}

func TestBackendIterateContainers(t *testing.T) {
	backend := newTestBackend(t, Options{})

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: name})
		require.NoError(t, err)
	}

	// The sequence must be restartable, iterate twice.
	for i := 0; i < 2; i++ {
		var seen []string

		err := backend.IterateContainers(context.Background(), IterateContainersOptions{
			Func: func(container *objval.Container) error {
				seen = append(seen, container.Name)
				return nil
			},
		})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, seen)
	}
}

func TestBackendIterateContainersPropagatesCallbackError(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)

	err = backend.IterateContainers(context.Background(), IterateContainersOptions{
		Func: func(_ *objval.Container) error { return context.Canceled },
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackendDeleteBlob(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)

	require.NoError(t, backend.DeleteBlob(context.Background(), DeleteBlobOptions{Container: "container", Name: "key"}))

	_, err = backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.True(t, objerr.IsNotFoundError(err))

	err = backend.DeleteBlob(context.Background(), DeleteBlobOptions{Container: "container", Name: "key"})
	require.True(t, objerr.IsNotFoundError(err))
}

func TestBackendDeleteContainer(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)

	require.NoError(t, backend.DeleteContainer(context.Background(), DeleteContainerOptions{Name: "container"}))

	err = backend.DeleteContainer(context.Background(), DeleteContainerOptions{Name: "container"})
	require.True(t, objerr.IsNotFoundError(err))

	_, err = backend.GetBlob(context.Background(), GetBlobOptions{Container: "container", Name: "key"})
	require.True(t, objerr.IsNotFoundError(err))
}

func TestBackendContainerCORS(t *testing.T) {
	backend := newTestBackend(t, Options{})

	container, err := backend.CreateContainer(context.Background(), CreateContainerOptions{Name: "container"})
	require.NoError(t, err)

	err = backend.SetContainerCORS(context.Background(), SetContainerCORSOptions{
		Container: "container",
		Rules:     []objval.CorsRule{{AllowedMethods: []string{"GET"}, AllowedOrigins: []string{"*"}}},
	})
	require.NoError(t, err)
	require.Len(t, container.CORS(), 1)

	err = backend.DeleteContainerCORS(context.Background(), DeleteContainerCORSOptions{Container: "container"})
	require.NoError(t, err)
	require.Empty(t, container.CORS())

	err = backend.SetContainerCORS(context.Background(), SetContainerCORSOptions{Container: "nosuch"})
	require.True(t, objerr.IsNotFoundError(err))
}

func TestBackendReset(t *testing.T) {
	backend := newTestBackend(t, Options{})

	_, err := backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)

	require.NoError(t, backend.Reset(context.Background()))

	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Empty(t, containers)

	// The backend remains usable after a reset.
	_, err = backend.PutBlob(context.Background(), PutBlobOptions{
		Container: "container",
		Name:      "key",
		Body:      strings.NewReader("hello"),
	})
	require.NoError(t, err)
}

func TestBackendResetReleasesEveryBlobOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("TMPDIR", tempDir)

	backend := NewBackend(Options{SpoolThreshold: 1})

	for _, name := range []string{"key-one", "key-two"} {
		_, err := backend.PutBlob(context.Background(), PutBlobOptions{
			Container: "container-" + name,
			Name:      name,
			Body:      strings.NewReader("hello"),
		})
		require.NoError(t, err)
	}

	// Pull the spilled backing files out from under the blobs so every release fails
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		require.NoError(t, os.Remove(filepath.Join(tempDir, entry.Name())))
	}

	// Both failures must be reported, a failed release must not short-circuit the rest
	err = backend.Reset(context.Background())
	require.ErrorContains(t, err, `failed to release payload of "key-one"`)
	require.ErrorContains(t, err, `failed to release payload of "key-two"`)

	containers, err := backend.ListContainers(context.Background())
	require.NoError(t, err)
	require.Empty(t, containers)
}
