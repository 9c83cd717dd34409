// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/util"
)

// ModelfileName is the build manifest written next to an imported file.
const ModelfileName = "Modelfile"

// ModelRecord is what the runtime reports about one model name.
type ModelRecord struct {
	Name    string
	Present bool
}

// Manager runs model operations through the ollama CLI.
type Manager struct {
	Runner execx.Runner
	// Binary is the ollama executable; "ollama" resolves through PATH.
	Binary string
	// Host is passed as OLLAMA_HOST when set.
	Host string
	// ScratchRoot is the parent of import build directories. Empty means
	// the system temp dir.
	ScratchRoot string
}

// NewManager returns a manager using "ollama" from PATH.
func NewManager(runner execx.Runner) *Manager {
	return &Manager{Runner: runner, Binary: "ollama"}
}

func (m *Manager) cmd(args ...string) execx.Cmd {
	c := execx.Cmd{Name: m.Binary, Args: args}
	if m.Host != "" {
		c.Env = []string{"OLLAMA_HOST=" + m.Host}
	}
	return c
}

// Pull downloads a model, streaming progress to the terminal. It is not
// retried; a failure is returned as-is for the caller to report.
func (m *Manager) Pull(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ModelError{Kind: PullFailed, Err: errors.New("model name is empty"), ExitCode: -1}
	}
	c := m.cmd("pull", name)
	c.Stream = true
	if _, err := m.Runner.Run(ctx, c); err != nil {
		return modelError(PullFailed, name, err)
	}
	logging.Log.WithField("model", name).Info("model pulled")
	return nil
}

// Remove deletes a model from the runtime.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if _, err := m.Runner.Run(ctx, m.cmd("rm", name)); err != nil {
		return modelError(RemoveFailed, name, err)
	}
	logging.Log.WithField("model", name).Info("model removed")
	return nil
}

// List yields installed model names. Every range over the returned
// sequence runs `ollama list` again, so it can be iterated any number of
// times. A failure is yielded once as a ListFailed error.
func (m *Manager) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		res, err := m.Runner.Run(ctx, m.cmd("list"))
		if err != nil {
			yield("", modelError(ListFailed, "", err))
			return
		}
		for _, name := range parseList(res.Stdout) {
			if !yield(name, nil) {
				return
			}
		}
	}
}

// parseList takes the first column of `ollama list`, skipping the header.
func parseList(out string) []string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || fields[0] == "NAME" {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}

// Has reports whether name is installed. An untagged name matches its
// ":latest" tag.
func (m *Manager) Has(ctx context.Context, name string) (bool, error) {
	for installed, err := range m.List(ctx) {
		if err != nil {
			return false, err
		}
		if SameModel(installed, name) {
			return true, nil
		}
	}
	return false, nil
}

// Record returns the presence record for name.
func (m *Manager) Record(ctx context.Context, name string) (ModelRecord, error) {
	ok, err := m.Has(ctx, name)
	return ModelRecord{Name: name, Present: ok}, err
}

// SameModel compares model references the way ollama resolves them.
func SameModel(a, b string) bool {
	return strings.EqualFold(normalizeTag(a), normalizeTag(b))
}

func normalizeTag(name string) string {
	name = strings.TrimSpace(name)
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	if !strings.Contains(base, ":") {
		return name + ":latest"
	}
	return name
}

// HandleImport builds a runtime model from a local GGUF file and returns
// the model name. The source is checked before anything is created, so a
// missing or unreadable file fails with SourceNotFound and leaves no
// scratch directory behind. An empty name is derived from the file name.
func (m *Manager) HandleImport(ctx context.Context, path, name string) (string, error) {
	if err := checkReadable(path); err != nil {
		return "", modelError(SourceNotFound, name, err)
	}
	if name == "" {
		name = DefaultImportName(path)
	}

	scratch, err := os.MkdirTemp(m.ScratchRoot, "rigrun-import-")
	if err != nil {
		return "", modelError(ImportFailed, name, fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	file := filepath.Base(path)
	if err := util.CopyFile(path, filepath.Join(scratch, file), 0o644); err != nil {
		return "", modelError(ImportFailed, name, fmt.Errorf("copy %s: %w", path, err))
	}
	manifest := fmt.Sprintf("FROM ./%s\n", file)
	if err := os.WriteFile(filepath.Join(scratch, ModelfileName), []byte(manifest), 0o644); err != nil {
		return "", modelError(ImportFailed, name, fmt.Errorf("write %s: %w", ModelfileName, err))
	}

	c := m.cmd("create", name, "-f", ModelfileName)
	c.Dir = scratch
	c.Stream = true
	if _, err := m.Runner.Run(ctx, c); err != nil {
		return "", modelError(ImportFailed, name, err)
	}
	logging.Log.WithField("model", name).WithField("source", path).Info("model imported")
	return name, nil
}

func checkReadable(path string) error {
	if path == "" {
		return errors.New("no file given")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// DefaultImportName turns "Qwen2.5-Coder-7B.Q4_K_M.gguf" into
// "qwen2.5-coder-7b.q4_k_m".
func DefaultImportName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-.")
	if name == "" {
		return "imported"
	}
	return name
}
