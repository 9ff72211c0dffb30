// Package docker talks to the container engine API for read-only status
// queries. Launching and stopping sessions goes through the runtime CLI in
// package container; this client only answers questions such as the engine
// version and whether the image is present.
package docker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Client wraps the engine API client.
type Client struct {
	cli *client.Client
}

// ContainerInfo is a summary of one container.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	State   string
	Created time.Time
}

// NewClient creates a client from the environment (DOCKER_HOST and friends).
// When podman is true and DOCKER_HOST is unset, the podman API socket is
// used if one exists.
func NewClient(podman bool) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if podman && os.Getenv("DOCKER_HOST") == "" {
		if sock := podmanSocket(); sock != "" {
			opts = append(opts, client.WithHost("unix://"+sock))
		}
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine client: %w", err)
	}
	return &Client{cli: cli}, nil
}

func podmanSocket() string {
	var candidates []string
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "podman", "podman.sock"))
	}
	candidates = append(candidates, "/run/podman/podman.sock")
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping verifies the engine is accessible.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("container engine not accessible: %w", err)
	}
	return nil
}

// Version returns the engine's server version.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := c.cli.ServerVersion(ctx)
	if err != nil {
		return "", fmt.Errorf("querying engine version: %w", err)
	}
	return v.Version, nil
}

// ImageExists reports whether ref is present locally.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspecting image %s: %w", ref, err)
	}
	return true, nil
}

// ListContainers returns all containers, running or not, whose name starts
// with prefix.
func (c *Client) ListContainers(ctx context.Context, prefix string) ([]ContainerInfo, error) {
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/?"+prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	var result []ContainerInfo
	for _, ctr := range containers {
		for _, name := range ctr.Names {
			// Names carry a leading slash, e.g. "/ccs-proj-123456".
			name = strings.TrimPrefix(name, "/")
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			id := ctr.ID
			if len(id) > 12 {
				id = id[:12]
			}
			result = append(result, ContainerInfo{
				ID:      id,
				Name:    name,
				Image:   ctr.Image,
				State:   ctr.State,
				Created: time.Unix(ctr.Created, 0),
			})
			break
		}
	}
	return result, nil
}

// ContainerState returns the state of a container ("running", "exited",
// etc). A missing container reports found=false.
func (c *Client) ContainerState(ctx context.Context, nameOrID string) (state string, found bool, err error) {
	inspect, err := c.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("inspecting container: %w", err)
	}
	if inspect.State == nil {
		return "", true, nil
	}
	return inspect.State.Status, true, nil
}
