package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd("")
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSampleConfig(t *testing.T) {
	out, _, err := execute(t, "--sample-config")
	require.NoError(t, err)
	assert.Contains(t, out, "transmission_host: localhost")
	assert.Contains(t, out, "torrent_dirs:")

	out, _, err = execute(t, "-s", "--sample-format", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "transmission_host = ")
	assert.Contains(t, out, "localhost")

	_, _, err = execute(t, "-s", "--sample-format", "ini")
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrInvalidInput))
}

func TestVerboseLogsCommandStart(t *testing.T) {
	_, stderr, err := execute(t, "-v", "-s")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Command started")
	assert.Contains(t, stderr, "process-torrents")
}

func TestQuietAndVerboseAreExclusive(t *testing.T) {
	_, _, err := execute(t, "-q", "-v", "-s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quiet")
}

func TestMissingConfig(t *testing.T) {
	_, _, err := execute(t, "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrConfigLoad))
}

func TestHardlinkCmd(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "a.mkv"), []byte("a"), 0644))
	dst := filepath.Join(root, "dst")

	out, _, err := execute(t, "--dry-run", "hardlink", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "1 linked")
	assert.Contains(t, out, MsgDryRunNotice)
	assert.NoDirExists(t, dst)

	out, _, err = execute(t, "hardlink", src, dst)
	require.NoError(t, err)
	assert.Contains(t, out, "1 linked")
	assert.NotContains(t, out, MsgDryRunNotice)

	srcInfo, err := os.Stat(filepath.Join(src, "sub", "a.mkv"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(dst, "sub", "a.mkv"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))

	_, _, err = execute(t, "hardlink", filepath.Join(root, "missing"), dst)
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrSourceMissing))
}

// fakeTransmission serves a fixed torrent list and records removals.
type fakeTransmission struct {
	mu       sync.Mutex
	torrents []map[string]interface{}
	removed  []interface{}
	result   string
}

func (f *fakeTransmission) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var req struct {
		Method    string                 `json:"method"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result := f.result
	if result == "" {
		result = "success"
	}
	resp := map[string]interface{}{"result": result}
	switch req.Method {
	case "torrent-get":
		resp["arguments"] = map[string]interface{}{"torrents": f.torrents}
	case "torrent-remove":
		f.removed = append(f.removed, req.Arguments["ids"])
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type runFixture struct {
	dir       string
	downloads string
	post      string
	db        string
	metrics   string
	config    string
	daemon    *fakeTransmission
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()
	dir := t.TempDir()
	f := &runFixture{
		dir:       dir,
		downloads: filepath.Join(dir, "downloads"),
		post:      filepath.Join(dir, "post"),
		db:        filepath.Join(dir, "state", "db.json"),
		metrics:   filepath.Join(dir, "metrics", "process_torrents.prom"),
		config:    filepath.Join(dir, "config.yaml"),
		daemon: &fakeTransmission{
			torrents: []map[string]interface{}{{
				"id":             7,
				"name":           "Show.S01",
				"downloadDir":    "/remote/downloads/tv",
				"percentDone":    1.0,
				"secondsSeeding": 60,
				"uploadRatio":    0.5,
			}},
		},
	}

	show := filepath.Join(f.downloads, "tv", "Show.S01")
	require.NoError(t, os.MkdirAll(show, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(show, "e01.mkv"), []byte("e01"), 0644))

	server := httptest.NewServer(f.daemon)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	config := fmt.Sprintf(`transmission_host: %s
transmission_port: %d
db: %s
metrics_file: %s
mapped_remote_paths:
  /remote/downloads: %s
torrent_dirs:
  - download_dir: %s
    post_processing_dir: %s
    ratio: 2
`, host, port, f.db, f.metrics, f.downloads, filepath.Join(f.downloads, "tv"), filepath.Join(f.post, "tv"))
	require.NoError(t, os.WriteFile(f.config, []byte(config), 0644))
	return f
}

func TestRun(t *testing.T) {
	f := newRunFixture(t)

	out, _, err := execute(t, "-c", f.config)
	require.NoError(t, err)
	assert.Contains(t, out, "merged")
	assert.Contains(t, out, "Show.S01")

	srcInfo, err := os.Stat(filepath.Join(f.downloads, "tv", "Show.S01", "e01.mkv"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(f.post, "tv", "Show.S01", "e01.mkv"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))

	data, err := os.ReadFile(f.db)
	require.NoError(t, err)
	assert.JSONEq(t, `{"/remote/downloads/tv/Show.S01": true}`, string(data))

	metrics, err := os.ReadFile(f.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `process_torrents_actions{kind="process"} 1`)
	assert.Contains(t, string(metrics), `process_torrents_last_run_success 1`)

	assert.Empty(t, f.daemon.removed, "ratio threshold not reached")
}

func TestRun_DryRunChangesNothing(t *testing.T) {
	f := newRunFixture(t)

	out, _, err := execute(t, "-c", f.config, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "to be merged")

	assert.NoDirExists(t, f.post)
	assert.NoFileExists(t, f.db)
	assert.NoFileExists(t, f.metrics)
}

func TestRun_QuietPrintsNothing(t *testing.T) {
	f := newRunFixture(t)

	out, _, err := execute(t, "-c", f.config, "-q")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, filepath.Join(f.post, "tv", "Show.S01", "e01.mkv"))
}

func TestRun_ClientFailure(t *testing.T) {
	f := newRunFixture(t)
	f.daemon.result = "permission denied"

	_, _, err := execute(t, "-c", f.config, "-q")
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrRPC))

	metrics, err := os.ReadFile(f.metrics)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `process_torrents_last_run_success 0`)
	assert.NoDirExists(t, f.post)
}
