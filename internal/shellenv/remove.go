// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shellenv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/jeranaias/rigrun-setup/internal/util"
)

// Outcome of removing one artifact.
type Outcome int

const (
	Removed Outcome = iota
	AlreadyAbsent
)

func (o Outcome) String() string {
	if o == Removed {
		return "removed"
	}
	return "already absent"
}

// Artifact names used in removal reports.
const (
	ArtifactWrapper = "wrapper"
	ArtifactEnvFile = "env file"
	ArtifactRcLines = "rc lines"
)

// ArtifactResult is the removal outcome for one artifact. For rc lines,
// Paths lists the files that were edited.
type ArtifactResult struct {
	Artifact string
	Paths    []string
	Outcome  Outcome
}

// Removal is the result of RemoveAll, in removal order.
type Removal []ArtifactResult

// AllAbsent reports whether nothing was left to remove.
func (r Removal) AllAbsent() bool {
	for _, a := range r {
		if a.Outcome != AlreadyAbsent {
			return false
		}
	}
	return true
}

// RemoveAll deletes the wrapper and the env file and strips marked lines
// from every rc candidate. The wrapper is looked for in every directory a
// previous run may have used. Missing artifacts are reported as
// AlreadyAbsent. The first hard failure stops the walk and is returned with
// the results gathered so far.
func (r *Reconciler) RemoveAll() (Removal, error) {
	var result Removal

	// Candidates come from the env file, so collect them before deleting it.
	wrapper := ArtifactResult{Artifact: ArtifactWrapper, Outcome: AlreadyAbsent}
	for _, path := range r.wrapperCandidates() {
		removed, err := util.RemoveIfExists(path)
		if err != nil {
			return result, fmt.Errorf("remove %s %s: %w", ArtifactWrapper, path, err)
		}
		if removed {
			wrapper.Paths = append(wrapper.Paths, path)
			wrapper.Outcome = Removed
		}
	}
	if wrapper.Outcome == AlreadyAbsent {
		wrapper.Paths = []string{r.WrapperPath()}
	}
	result = append(result, wrapper)

	removed, err := util.RemoveIfExists(r.EnvPath)
	if err != nil {
		return result, fmt.Errorf("remove %s %s: %w", ArtifactEnvFile, r.EnvPath, err)
	}
	env := ArtifactResult{Artifact: ArtifactEnvFile, Paths: []string{r.EnvPath}, Outcome: AlreadyAbsent}
	if removed {
		env.Outcome = Removed
	}
	result = append(result, env)

	rc := ArtifactResult{Artifact: ArtifactRcLines, Outcome: AlreadyAbsent}
	for _, path := range r.Platform.RcCandidates() {
		n, err := stripMarkedLines(path)
		if err != nil {
			return append(result, rc), fmt.Errorf("clean %s: %w", path, err)
		}
		if n > 0 {
			rc.Paths = append(rc.Paths, path)
			rc.Outcome = Removed
		}
	}
	return append(result, rc), nil
}

// RecordedInstallDir returns the install dir named by the PATH line of the
// existing env file.
func (r *Reconciler) RecordedInstallDir() (string, bool) {
	data, err := os.ReadFile(r.EnvPath)
	if err != nil {
		return "", false
	}
	d := r.Platform.Dialect()
	value, ok := ParseEnvFile(d, data).Get(VarPath)
	if !ok {
		return "", false
	}
	return PathDir(d, value)
}

// wrapperCandidates lists where a wrapper may live: the configured dir
// first, then the dir recorded in the env file, then the default.
func (r *Reconciler) wrapperCandidates() []string {
	dirs := []string{r.InstallDir}
	if dir, ok := r.RecordedInstallDir(); ok {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, r.Platform.DefaultInstallDir())

	var paths []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		path := filepath.Join(dir, r.Platform.WrapperName())
		if seen[path] {
			continue
		}
		seen[path] = true
		paths = append(paths, path)
	}
	return paths
}

// Status is a read-only view of the artifacts on disk.
type Status struct {
	Wrapper        Wrapper
	WrapperPresent bool
	EnvPath        string
	EnvPresent     bool
	// SourcedIn lists rc candidates holding the exact source line.
	SourcedIn []string
}

var (
	wrapperContextRegex = regexp.MustCompile(`OLLAMA_CONTEXT_LENGTH=(\d+)`)
	wrapperModelRegex   = regexp.MustCompile(`ollama run "([^"]+)"`)
)

// Status inspects the artifacts without changing anything.
func (r *Reconciler) Status() Status {
	st := Status{
		Wrapper: Wrapper{Path: r.WrapperPath()},
		EnvPath: r.EnvPath,
	}
	for _, path := range r.wrapperCandidates() {
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		st.Wrapper.Path = path
		st.WrapperPresent = true
		if m := wrapperModelRegex.FindSubmatch(content); m != nil {
			st.Wrapper.TargetModel = string(m[1])
		}
		if m := wrapperContextRegex.FindSubmatch(content); m != nil {
			st.Wrapper.ContextTokens, _ = strconv.Atoi(string(m[1]))
		}
		break
	}
	st.EnvPresent = util.FileExists(r.EnvPath)
	st.SourcedIn = r.rcFilesWithLine(r.SourceLine())
	return st
}
