// Package storage runs disposable database containers for offset store tests.
package storage

import (
	"context"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

// DatastoreTestContainer represents a runnable container for testing specific datastore engines.
type DatastoreTestContainer interface {
	// GetConnectionURI returns a connection string to the datastore instance running inside
	// the container.
	GetConnectionURI(includeCredentials bool) string

	// GetDatabaseSchemaVersion returns the last migration applied when the container was created.
	GetDatabaseSchemaVersion() int64

	GetUsername() string
	GetPassword() string
}

type memoryTestContainer struct{}

func (memoryTestContainer) GetConnectionURI(bool) string {
	return ""
}

func (memoryTestContainer) GetUsername() string {
	return ""
}

func (memoryTestContainer) GetPassword() string {
	return ""
}

func (memoryTestContainer) GetDatabaseSchemaVersion() int64 {
	return 0
}

// RunDatastoreTestContainer runs a DatastoreTestContainer for engine and applies every
// offset store migration to it. The container is removed when the test finishes.
func RunDatastoreTestContainer(t testing.TB, engine string) DatastoreTestContainer {
	switch engine {
	case "mysql":
		return NewMySQLTestContainer().RunMySQLTestContainer(t)
	case "postgres":
		return NewPostgresTestContainer().RunPostgresTestContainer(t)
	case "memory":
		return memoryTestContainer{}
	default:
		t.Fatalf("'%s' engine is not supported by RunDatastoreTestContainer", engine)
		return nil
	}
}

type containerSpec struct {
	image string
	port  nat.Port
	env   []string
}

// runContainer starts spec, pulling the image if needed, and returns the host
// port mapped to spec.port.
func runContainer(t testing.TB, spec containerSpec) string {
	ctx := context.Background()

	dockerClient, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		dockerClient.Close()
	})

	allImages, err := dockerClient.ImageList(ctx, image.ListOptions{All: true})
	require.NoError(t, err)

	found := slices.ContainsFunc(allImages, func(img image.Summary) bool {
		return slices.ContainsFunc(img.RepoTags, func(tag string) bool {
			return strings.Contains(tag, spec.image)
		})
	})
	if !found {
		t.Logf("Pulling image %s", spec.image)
		reader, err := dockerClient.ImagePull(ctx, spec.image, image.PullOptions{})
		require.NoError(t, err)

		_, err = io.Copy(io.Discard, reader) // consume the image pull output to make sure it's done
		require.NoError(t, err)
		require.NoError(t, reader.Close())
	}

	containerCfg := container.Config{
		Env: spec.env,
		ExposedPorts: nat.PortSet{
			spec.port: {},
		},
		Image: spec.image,
	}
	hostCfg := container.HostConfig{
		AutoRemove:      true,
		PublishAllPorts: true,
	}

	name := strings.SplitN(spec.image, ":", 2)[0] + "-" + ulid.Make().String()

	cont, err := dockerClient.ContainerCreate(ctx, &containerCfg, &hostCfg, nil, nil, name)
	require.NoError(t, err, "failed to create %s docker container", spec.image)

	t.Cleanup(func() {
		t.Logf("stopping container %s", name)
		timeoutSec := 5

		err := dockerClient.ContainerStop(context.Background(), cont.ID, container.StopOptions{Timeout: &timeoutSec})
		if err != nil && !errdefs.IsNotFound(err) {
			t.Logf("failed to stop container %s: %v", name, err)
		}

		t.Logf("stopped container %s", name)
	})

	err = dockerClient.ContainerStart(ctx, cont.ID, container.StartOptions{})
	require.NoError(t, err, "failed to start %s container", spec.image)

	containerJSON, err := dockerClient.ContainerInspect(ctx, cont.ID)
	require.NoError(t, err)

	m, ok := containerJSON.NetworkSettings.Ports[spec.port]
	if !ok || len(m) == 0 {
		require.FailNow(t, "failed to get host port mapping from container "+name)
	}
	return m[0].HostPort
}
