package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"LabSentry/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"

	"google.golang.org/protobuf/types/known/durationpb"
)

// newTestDockerClient points the client at an httptest engine stub. TCP
// hosts skip the unix socket dialer, so the stub's URL works directly.
func newTestDockerClient(serverURL string) *DockerClient {
	return NewDockerClient(&conf.Data{
		Docker: &conf.Data_Docker{
			Host:    serverURL,
			Timeout: durationpb.New(5 * time.Second),
		},
	}, log.NewStdLogger(os.Stdout))
}

// TestStop_TreatsGoneContainersAsSuccess verifies 304 and 404 both satisfy
// a stop; the desired state is reached either way.
func TestStop_TreatsGoneContainersAsSuccess(t *testing.T) {
	statuses := map[string]int{
		"/v1.43/containers/plex/stop":  http.StatusNoContent,
		"/v1.43/containers/sonar/stop": http.StatusNotModified,
		"/v1.43/containers/ghost/stop": http.StatusNotFound,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "10", r.URL.Query().Get("t"))
		w.WriteHeader(statuses[r.URL.Path])
	}))
	defer server.Close()

	d := newTestDockerClient(server.URL)

	assert.NoError(t, d.Stop(context.Background(), "plex"))
	assert.NoError(t, d.Stop(context.Background(), "sonar"))
	assert.NoError(t, d.Stop(context.Background(), "ghost"))
}

// TestStop_ServerErrorFails verifies a 500 from the engine is a real error
// carrying the body.
func TestStop_ServerErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cannot stop: device busy", http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestDockerClient(server.URL).Stop(context.Background(), "plex")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

// TestRestart_MissingContainerFails verifies a 404 on restart is a failure,
// unlike stop: the named workload cannot be brought back.
func TestRestart_MissingContainerFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1.43/containers/plex/restart" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := newTestDockerClient(server.URL)

	assert.NoError(t, d.Restart(context.Background(), "plex"))
	assert.Error(t, d.Restart(context.Background(), "gone"))
}

// TestStopAll_SkipsStuckContainers verifies one failing container does not
// block the rest and the partial failure is reported.
func TestStopAll_SkipsStuckContainers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.43/containers/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"Id": "aaa", "Names": ["/plex"]},
				{"Id": "bbb", "Names": ["/stuck"]},
				{"Id": "ccc", "Names": ["/sonarr"]}
			]`))
		case "/v1.43/containers/bbb/stop":
			http.Error(w, "device busy", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	stopped, err := newTestDockerClient(server.URL).StopAll(context.Background())

	assert.Equal(t, 2, stopped)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 containers failed to stop")
}

// TestStopAll_EmptyEngine verifies no running containers is a clean zero.
func TestStopAll_EmptyEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	stopped, err := newTestDockerClient(server.URL).StopAll(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, stopped)
}

// TestPruneImages_ReportsReclaimedSpace verifies the prune report is
// summarized for the audit trail.
func TestPruneImages_ReportsReclaimedSpace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.43/images/prune", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"ImagesDeleted": [{"Deleted": "sha256:aaa"}, {"Untagged": "old:latest"}],
			"SpaceReclaimed": 1073741824
		}`))
	}))
	defer server.Close()

	summary, err := newTestDockerClient(server.URL).PruneImages(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "removed 2 images, reclaimed 1073741824 bytes", summary)
}

// TestContainerName_StripsLeadingSlash covers the engine's name format.
func TestContainerName_StripsLeadingSlash(t *testing.T) {
	assert.Equal(t, "plex", containerName(dockerContainer{ID: "aaa", Names: []string{"/plex"}}))
	assert.Equal(t, "aaa", containerName(dockerContainer{ID: "aaa"}))
}
