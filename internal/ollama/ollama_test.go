// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/execx/execxtest"
)

const listOutput = `NAME                       ID              SIZE      MODIFIED
qwen2.5-coder:7b           2b0496514337    4.7 GB    2 days ago
demo:latest                a1b2c3d4e5f6    1.1 GB    5 minutes ago
`

// =============================================================================
// MANAGER TESTS
// =============================================================================

func TestList_ParsesFirstColumn(t *testing.T) {
	runner := execxtest.NewRunner().Output("ollama list", listOutput)
	m := NewManager(runner)

	var names []string
	for name, err := range m.List(context.Background()) {
		require.NoError(t, err)
		names = append(names, name)
	}
	if diff := cmp.Diff([]string{"qwen2.5-coder:7b", "demo:latest"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestList_Restartable(t *testing.T) {
	runner := execxtest.NewRunner().Output("ollama list", listOutput)
	m := NewManager(runner)
	seq := m.List(context.Background())

	for i := 0; i < 3; i++ {
		count := 0
		for _, err := range seq {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 2, count)
	}
	assert.Len(t, runner.Calls, 3, "each range re-runs the CLI")
}

func TestList_EarlyBreak(t *testing.T) {
	runner := execxtest.NewRunner().Output("ollama list", listOutput)
	m := NewManager(runner)

	for name := range m.List(context.Background()) {
		assert.Equal(t, "qwen2.5-coder:7b", name)
		break
	}
}

func TestList_Failure(t *testing.T) {
	runner := execxtest.NewRunner().Fail("ollama list", "could not connect to ollama app")
	m := NewManager(runner)

	var errs []error
	for _, err := range m.List(context.Background()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.Equal(t, ListFailed, ModelErrorKindOf(errs[0]))
}

func TestHas(t *testing.T) {
	runner := execxtest.NewRunner().Output("ollama list", listOutput)
	m := NewManager(runner)
	ctx := context.Background()

	tests := map[string]bool{
		"demo":              true,
		"demo:latest":       true,
		"qwen2.5-coder:7b":  true,
		"qwen2.5-coder":     false,
		"qwen2.5-coder:14b": false,
	}
	for name, want := range tests {
		got, err := m.Has(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestSameModel(t *testing.T) {
	assert.True(t, SameModel("hf.co/org/model", "hf.co/org/model:latest"))
	assert.True(t, SameModel("Demo", "demo:latest"))
	assert.False(t, SameModel("registry:5000/demo", "registry:5000/demo:v1"))
}

func TestPull(t *testing.T) {
	runner := execxtest.NewRunner()
	m := NewManager(runner)
	m.Host = "127.0.0.1:11500"

	require.NoError(t, m.Pull(context.Background(), "demo"))
	require.Len(t, runner.Calls, 1)
	call := runner.Calls[0]
	assert.Equal(t, "ollama pull demo", call.String())
	assert.True(t, call.Stream)
	assert.Equal(t, []string{"OLLAMA_HOST=127.0.0.1:11500"}, call.Env)
}

func TestPull_FailureNotRetried(t *testing.T) {
	runner := execxtest.NewRunner().Fail("ollama pull", "pull model manifest: file does not exist")
	m := NewManager(runner)

	err := m.Pull(context.Background(), "nope")
	require.Error(t, err)

	var me *ModelError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, PullFailed, me.Kind)
	assert.Equal(t, "nope", me.Model)
	assert.Equal(t, "ollama pull nope", me.Command)
	assert.Equal(t, 1, me.ExitCode)
	assert.Len(t, runner.Calls, 1)
}

func TestRemove(t *testing.T) {
	runner := execxtest.NewRunner().Fail("ollama rm", "model 'demo' not found")
	m := NewManager(runner)

	err := m.Remove(context.Background(), "demo")
	assert.Equal(t, RemoveFailed, ModelErrorKindOf(err))
	assert.Contains(t, err.Error(), "not found")
}

// =============================================================================
// IMPORT TESTS
// =============================================================================

func TestHandleImport_SourceNotFoundCreatesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.Mkdir(root, 0o755))
	runner := execxtest.NewRunner()
	m := NewManager(runner)
	m.ScratchRoot = root

	_, err := m.HandleImport(context.Background(), filepath.Join(t.TempDir(), "missing.gguf"), "demo")

	require.Error(t, err)
	assert.True(t, IsSourceNotFound(err))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no scratch directory may exist")
	assert.Empty(t, runner.Calls)
}

func TestHandleImport_DirectoryIsNotASource(t *testing.T) {
	m := NewManager(execxtest.NewRunner())
	m.ScratchRoot = t.TempDir()

	_, err := m.HandleImport(context.Background(), t.TempDir(), "demo")
	assert.True(t, IsSourceNotFound(err))
}

func TestHandleImport_BuildsFromModelfile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "My Model.Q4_K_M.gguf")
	require.NoError(t, os.WriteFile(src, []byte("GGUF-bytes"), 0o644))
	root := t.TempDir()

	var seenDir string
	runner := execxtest.NewRunner().On("ollama create", func(c execx.Cmd) (string, error) {
		seenDir = c.Dir
		manifest, err := os.ReadFile(filepath.Join(c.Dir, ModelfileName))
		if err != nil {
			return "", err
		}
		if string(manifest) != "FROM ./My Model.Q4_K_M.gguf\n" {
			return "", errors.New("unexpected manifest " + string(manifest))
		}
		copied, err := os.ReadFile(filepath.Join(c.Dir, "My Model.Q4_K_M.gguf"))
		if err != nil || string(copied) != "GGUF-bytes" {
			return "", errors.New("model file not copied")
		}
		return "success", nil
	})
	m := NewManager(runner)
	m.ScratchRoot = root

	name, err := m.HandleImport(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, "my-model.q4_k_m", name)
	assert.Equal(t, []string{"create", "my-model.q4_k_m", "-f", "Modelfile"}, runner.Calls[0].Args)

	assert.NotEmpty(t, seenDir)
	assert.NoDirExists(t, seenDir, "scratch dir is removed after the build")
	assert.FileExists(t, src, "source is left alone")
}

func TestHandleImport_CreateFails(t *testing.T) {
	src := filepath.Join(t.TempDir(), "m.gguf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	root := t.TempDir()
	m := NewManager(execxtest.NewRunner().Fail("ollama create", "invalid file magic"))
	m.ScratchRoot = root

	_, err := m.HandleImport(context.Background(), src, "custom")
	assert.Equal(t, ImportFailed, ModelErrorKindOf(err))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDefaultImportName(t *testing.T) {
	assert.Equal(t, "qwen2.5-coder-7b", DefaultImportName("/models/Qwen2.5-Coder-7B.gguf"))
	assert.Equal(t, "imported", DefaultImportName("/models/$$$.gguf"))
}

// =============================================================================
// SERVER TESTS
// =============================================================================

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:11434", BaseURL(""))
	assert.Equal(t, "http://127.0.0.1:11500", BaseURL("0.0.0.0:11500"))
	assert.Equal(t, "https://ollama.internal", BaseURL("https://ollama.internal/"))
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ollama is running"))
	}))
	defer srv.Close()

	s := NewServer(srv.URL)
	assert.NoError(t, s.CheckRunning(context.Background()))

	srv.Close()
	assert.True(t, IsNotRunning(s.CheckRunning(context.Background())))
}

func TestEnsureServing_AlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s := NewServer(srv.URL)
	s.Start = func(execx.Cmd) error {
		t.Fatal("must not start a running server")
		return nil
	}
	assert.NoError(t, s.EnsureServing(context.Background()))
}

func TestEnsureServing_BecomesHealthy(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	s := NewServer(srv.URL)
	s.Backoff = 10 * time.Millisecond
	var started execx.Cmd
	s.Start = func(c execx.Cmd) error {
		started = c
		healthy.Store(true)
		return nil
	}

	require.NoError(t, s.EnsureServing(context.Background()))
	assert.Equal(t, "ollama serve", started.String())
}

func TestEnsureServing_GivesUpAfterAttempts(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewServer(srv.URL)
	s.Attempts = 2
	s.Backoff = 10 * time.Millisecond
	s.Start = func(execx.Cmd) error { return nil }

	err := s.EnsureServing(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotRunning(err))
	assert.Equal(t, int32(3), checks.Load(), "one initial check plus two attempts")
}

func TestEnsureServing_StartFails(t *testing.T) {
	s := NewServer("127.0.0.1:1")
	s.Start = func(execx.Cmd) error { return errors.New("exec: \"ollama\": executable file not found") }

	err := s.EnsureServing(context.Background())
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrTypeStartFailed, ce.Type)
}

func TestEnsureServing_HungServerNotRestarted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	s := NewServer(srv.URL)
	s.HTTPClient = &http.Client{Timeout: 20 * time.Millisecond}
	s.Start = func(execx.Cmd) error {
		t.Fatal("must not start a second server")
		return nil
	}

	assert.True(t, IsTimeout(s.CheckRunning(context.Background())))

	err := s.EnsureServing(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, IsNotRunning(err))
	assert.Contains(t, err.Error(), "is not answering")
}
