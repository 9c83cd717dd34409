// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shellenv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
	"github.com/jeranaias/rigrun-setup/internal/util"
)

// Env var names written to the env file.
const (
	VarContextLength = "OLLAMA_CONTEXT_LENGTH"
	VarOllamaHost    = "OLLAMA_HOST"
	VarBaseURL       = "ANTHROPIC_BASE_URL"
	VarAuthToken     = "ANTHROPIC_AUTH_TOKEN"
	VarModel         = "ANTHROPIC_MODEL"
	VarPath          = "PATH"
)

// EnvVar is one exported variable.
type EnvVar struct {
	Name  string
	Value string
}

// EnvVars keeps insertion order, which is the line order of the env file.
type EnvVars []EnvVar

// Set replaces the value of an existing name in place or appends it.
func (v EnvVars) Set(name, value string) EnvVars {
	for i := range v {
		if v[i].Name == name {
			v[i].Value = value
			return v
		}
	}
	return append(v, EnvVar{Name: name, Value: value})
}

// Get returns the value for name.
func (v EnvVars) Get(name string) (string, bool) {
	for _, e := range v {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// EnvFileRecord describes a written env file.
type EnvFileRecord struct {
	Path string
	Vars EnvVars
}

// StandardVars returns the variables that point the assistant CLI at the
// local runtime. host is the OLLAMA_HOST value, e.g. "127.0.0.1:11434".
func StandardVars(model string, contextTokens int, host string) EnvVars {
	baseURL := host
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return EnvVars{
		{VarContextLength, strconv.Itoa(contextTokens)},
		{VarOllamaHost, host},
		{VarBaseURL, baseURL},
		{VarAuthToken, "ollama"},
		{VarModel, model},
	}
}

// PathVar prepends dir to PATH in the given dialect. The existing PATH is
// referenced, not copied, so it expands when the file is sourced.
func PathVar(d platform.Dialect, dir string) EnvVar {
	if d == platform.PowerShell {
		return EnvVar{Name: VarPath, Value: dir + ";$env:PATH"}
	}
	return EnvVar{Name: VarPath, Value: dir + ":$PATH"}
}

// RenderEnvFile formats vars one per line in order.
func RenderEnvFile(d platform.Dialect, vars EnvVars) []byte {
	var b strings.Builder
	b.WriteString("# Generated by rigrun-setup. Re-running setup overwrites this file.\n")
	for _, v := range vars {
		if d == platform.PowerShell {
			fmt.Fprintf(&b, "$env:%s = \"%s\"\n", v.Name, escapePowerShell(v.Value))
		} else {
			fmt.Fprintf(&b, "export %s=\"%s\"\n", v.Name, escapePosix(v.Value))
		}
	}
	return []byte(b.String())
}

// ParseEnvFile reads back a file written by RenderEnvFile. Lines in any
// other shape are skipped.
func ParseEnvFile(d platform.Dialect, data []byte) EnvVars {
	var vars EnvVars
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		var name, quoted string
		var ok bool
		if d == platform.PowerShell {
			rest, found := strings.CutPrefix(line, "$env:")
			if !found {
				continue
			}
			name, quoted, ok = strings.Cut(rest, " = ")
		} else {
			rest, found := strings.CutPrefix(line, "export ")
			if !found {
				continue
			}
			name, quoted, ok = strings.Cut(rest, "=")
		}
		if !ok || !validName(name) || len(quoted) < 2 || quoted[0] != '"' || quoted[len(quoted)-1] != '"' {
			continue
		}
		escape := '\\'
		if d == platform.PowerShell {
			escape = '`'
		}
		vars = append(vars, EnvVar{Name: name, Value: unescape(quoted[1:len(quoted)-1], escape)})
	}
	return vars
}

// PathDir returns the directory a PATH value from PathVar prepends.
func PathDir(d platform.Dialect, value string) (string, bool) {
	suffix := ":$PATH"
	if d == platform.PowerShell {
		suffix = ";$env:PATH"
	}
	dir, ok := strings.CutSuffix(value, suffix)
	return dir, ok && dir != ""
}

// EnsureEnvFile overwrites the env file with vars.
func (r *Reconciler) EnsureEnvFile(vars EnvVars) (string, error) {
	for _, v := range vars {
		if !validName(v.Name) {
			return "", fmt.Errorf("invalid environment variable name %q", v.Name)
		}
	}
	data := RenderEnvFile(r.Platform.Dialect(), vars)
	if err := util.AtomicWriteFile(r.EnvPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write env file %s: %w", r.EnvPath, err)
	}
	logging.Log.WithField("path", r.EnvPath).WithField("vars", len(vars)).Debug("env file written")
	return r.EnvPath, nil
}

// $ is left alone so $PATH expands.
func escapePosix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`")
	return r.Replace(s)
}

func escapePowerShell(s string) string {
	r := strings.NewReplacer("`", "``", `"`, "`\"")
	return r.Replace(s)
}

func unescape(s string, escape rune) string {
	var b strings.Builder
	pending := false
	for _, c := range s {
		if c == escape && !pending {
			pending = true
			continue
		}
		pending = false
		b.WriteRune(c)
	}
	return b.String()
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
