package data

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	defaultDockerHost    = "unix:///var/run/docker.sock"
	defaultDockerTimeout = 30 * time.Second
	dockerAPIVersion     = "v1.43"
	stopGraceSeconds     = 10
)

// DockerClient implements biz.WorkloadController against the Docker Engine
// HTTP API over the local unix socket. Only the handful of endpoints the
// remediation and shutdown paths need are wired.
type DockerClient struct {
	base   string
	client *http.Client
	logger *log.Helper
}

// NewDockerClient creates an Engine API client from configuration.
func NewDockerClient(c *conf.Data, logger log.Logger) *DockerClient {
	host := defaultDockerHost
	timeout := defaultDockerTimeout
	if c != nil && c.Docker != nil {
		if c.Docker.Host != "" {
			host = c.Docker.Host
		}
		if c.Docker.Timeout != nil {
			timeout = c.Docker.Timeout.AsDuration()
		}
	}

	transport := &http.Transport{}
	base := host
	if strings.HasPrefix(host, "unix://") {
		socketPath := strings.TrimPrefix(host, "unix://")
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
		// Host part of the URL is ignored for unix sockets.
		base = "http://docker"
	}

	return &DockerClient{
		base: base,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: log.NewHelper(logger),
	}
}

// Stop stops one container. A container that is already stopped (304) or
// gone (404) counts as success; the desired state is reached either way.
func (d *DockerClient) Stop(ctx context.Context, name string) error {
	status, body, err := d.post(ctx, fmt.Sprintf("/containers/%s/stop?t=%d", name, stopGraceSeconds))
	if err != nil {
		return err
	}
	switch status {
	case http.StatusNoContent, http.StatusNotModified, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("failed to stop container %s: status %d: %s", name, status, body)
	}
}

// Restart restarts one container. Unlike Stop, a missing container is a
// real failure: the workload the alert named cannot be brought back.
func (d *DockerClient) Restart(ctx context.Context, name string) error {
	status, body, err := d.post(ctx, fmt.Sprintf("/containers/%s/restart?t=%d", name, stopGraceSeconds))
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("failed to restart container %s: status %d: %s", name, status, body)
	}
	return nil
}

// StopAll stops every running container and returns how many were
// stopped. Individual stop failures are logged and skipped so one stuck
// container cannot block the rest of an emergency sequence.
func (d *DockerClient) StopAll(ctx context.Context) (int, error) {
	containers, err := d.listRunning(ctx)
	if err != nil {
		return 0, err
	}

	stopped := 0
	failed := 0
	for _, c := range containers {
		if err := d.Stop(ctx, c.ID); err != nil {
			d.logger.Warnf("failed to stop container %s: %v", containerName(c), err)
			failed++
			continue
		}
		stopped++
	}

	if failed > 0 {
		return stopped, fmt.Errorf("%d of %d containers failed to stop", failed, len(containers))
	}
	return stopped, nil
}

// PruneImages removes dangling images and reports the reclaimed space.
func (d *DockerClient) PruneImages(ctx context.Context) (string, error) {
	status, body, err := d.post(ctx, "/images/prune")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("failed to prune images: status %d: %s", status, body)
	}

	var report struct {
		SpaceReclaimed int64 `json:"SpaceReclaimed"`
		ImagesDeleted  []struct {
			Deleted  string `json:"Deleted"`
			Untagged string `json:"Untagged"`
		} `json:"ImagesDeleted"`
	}
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return "", fmt.Errorf("failed to decode prune report: %w", err)
	}

	return fmt.Sprintf("removed %d images, reclaimed %d bytes",
		len(report.ImagesDeleted), report.SpaceReclaimed), nil
}

type dockerContainer struct {
	ID    string   `json:"Id"`
	Names []string `json:"Names"`
}

func containerName(c dockerContainer) string {
	if len(c.Names) > 0 {
		return strings.TrimPrefix(c.Names[0], "/")
	}
	return c.ID
}

// listRunning returns the currently running containers.
func (d *DockerClient) listRunning(ctx context.Context) ([]dockerContainer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/containers/json", d.base, dockerAPIVersion), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("failed to list containers: status %d: %s", resp.StatusCode, string(raw))
	}

	var containers []dockerContainer
	if err := json.NewDecoder(resp.Body).Decode(&containers); err != nil {
		return nil, fmt.Errorf("failed to decode container list: %w", err)
	}
	return containers, nil
}

// post issues one POST and returns the status code with a bounded body.
func (d *DockerClient) post(ctx context.Context, path string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s%s", d.base, dockerAPIVersion, path), nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("engine API call %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(raw)), nil
}
