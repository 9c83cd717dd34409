// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shellenv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/util"
)

// SourceLine is the rc line that loads this reconciler's env file.
func (r *Reconciler) SourceLine() string {
	return r.Platform.SourceLine(r.EnvPath)
}

// EnsureRcSourced appends line to rcPath unless an identical line is
// already present. The file is created if missing. appended reports
// whether the file changed.
func (r *Reconciler) EnsureRcSourced(rcPath, line string) (appended bool, err error) {
	content, err := os.ReadFile(rcPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", rcPath, err)
	}
	if containsLine(string(content), line) {
		logging.Log.WithField("rc", rcPath).Debug("source line already present")
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(rcPath), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(rcPath), err)
	}
	f, err := os.OpenFile(rcPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", rcPath, err)
	}
	defer f.Close()

	var b strings.Builder
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(line)
	b.WriteString("\n")
	if _, err := f.WriteString(b.String()); err != nil {
		return false, fmt.Errorf("append to %s: %w", rcPath, err)
	}
	logging.Log.WithField("rc", rcPath).Debug("source line appended")
	return true, nil
}

// EnsureSourced appends the source line to every rc target of the
// platform and returns the files that changed.
func (r *Reconciler) EnsureSourced() ([]string, error) {
	line := r.SourceLine()
	var changed []string
	for _, rc := range r.Platform.RcTargets() {
		appended, err := r.EnsureRcSourced(rc, line)
		if err != nil {
			return changed, err
		}
		if appended {
			changed = append(changed, rc)
		}
	}
	return changed, nil
}

// containsLine is exact-line containment. Trailing carriage returns are
// ignored so CRLF profiles on Windows still match.
func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSuffix(l, "\r") == line {
			return true
		}
	}
	return false
}

// stripMarkedLines removes every line carrying the marker from rcPath and
// returns how many were removed. A missing file removes nothing. A symlinked
// rc file is edited at its target so the link survives.
func stripMarkedLines(rcPath string) (int, error) {
	target, err := filepath.EvalSymlinks(rcPath)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return 0, err
	}
	content, err := os.ReadFile(target)
	if err != nil {
		return 0, err
	}

	lines := strings.SplitAfter(string(content), "\n")
	kept := lines[:0]
	removed := 0
	for _, l := range lines {
		if strings.Contains(l, platform.Marker) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := util.AtomicWriteFile(target, []byte(strings.Join(kept, "")), info.Mode().Perm()); err != nil {
		return 0, err
	}
	log := logging.Log.WithField("rc", rcPath).WithField("lines", removed)
	if target != rcPath {
		log = log.WithField("target", target)
	}
	log.Debug("marked lines removed")
	return removed, nil
}

// rcFilesWithLine lists the candidates that contain line.
func (r *Reconciler) rcFilesWithLine(line string) []string {
	var found []string
	for _, rc := range r.Platform.RcCandidates() {
		content, err := os.ReadFile(rc)
		if err != nil {
			continue
		}
		if containsLine(string(content), line) {
			found = append(found, rc)
		}
	}
	return found
}
