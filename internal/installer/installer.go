// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package installer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigrun-setup/internal/detect"
	"github.com/jeranaias/rigrun-setup/internal/execx"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/platform"
)

// Prober reports whether a tool is present.
type Prober interface {
	Probe(ctx context.Context, tool string) detect.ToolPresence
}

// ConsentFunc asks the operator a yes/no question.
type ConsentFunc func(ctx context.Context, question string) bool

// Installer installs tools into a user-writable prefix.
type Installer struct {
	Platform   platform.Platform
	Prober     Prober
	Runner     execx.Runner
	LookPath   execx.LookPathFunc
	HTTPClient *http.Client
	// InstallDir receives downloaded binaries.
	InstallDir string
	// Consent gates privileged strategies. Nil refuses them.
	Consent ConsentFunc
	// Notify receives one-line progress messages for the operator.
	Notify func(msg string)

	// Strategies overrides the default order; tests use it.
	Strategies []Strategy
}

// New returns an installer with the default strategy order.
func New(p platform.Platform, prober Prober, runner execx.Runner, installDir string) *Installer {
	if installDir == "" {
		installDir = p.DefaultInstallDir()
	}
	return &Installer{
		Platform:   p,
		Prober:     prober,
		Runner:     runner,
		LookPath:   execx.LookPath,
		HTTPClient: &http.Client{},
		InstallDir: installDir,
	}
}

// DefaultStrategies is the fixed priority order.
func (in *Installer) DefaultStrategies() []Strategy {
	return []Strategy{
		brewStrategy{in},
		wingetStrategy{in},
		npmStrategy{in},
		downloadStrategy{in},
		bootstrapStrategy{in},
	}
}

func (in *Installer) strategies() []Strategy {
	if in.Strategies != nil {
		return in.Strategies
	}
	return in.DefaultStrategies()
}

func (in *Installer) notify(format string, args ...any) {
	if in.Notify != nil {
		in.Notify(fmt.Sprintf(format, args...))
	}
}

// EnsureInstalled makes spec.Name present and returns its path. A tool that
// already probes as present is returned without running anything.
//
// Applicable strategies run in order, each at most once. After every
// strategy the tool is probed again and the first positive probe wins. A
// strategy that exits cleanly but leaves the tool missing counts as a
// VerificationFailed attempt. When every strategy has been tried the
// error's Kind is that of the last attempt, or Unsupported when none
// applied.
func (in *Installer) EnsureInstalled(ctx context.Context, spec ToolSpec) (string, error) {
	log := logging.Log.WithField("tool", spec.Name)

	if p := in.Prober.Probe(ctx, spec.Name); p.Found {
		log.WithField("path", p.Path).Debug("already installed")
		return p.Path, nil
	}

	installErr := &InstallError{Tool: spec.Name}
	for _, s := range in.strategies() {
		ok, reason := s.Applicable(ctx, spec)
		if !ok {
			log.WithFields(logrus.Fields{"strategy": s.Name(), "reason": reason}).Debug("strategy not applicable")
			continue
		}

		in.notify("Installing %s via %s", spec.Name, s.Name())
		log.WithField("strategy", s.Name()).Info("installing")

		err := s.Install(ctx, spec)
		if err == nil {
			if p := in.Prober.Probe(ctx, spec.Name); p.Found {
				log.WithFields(logrus.Fields{"strategy": s.Name(), "path": p.Path}).Info("installed")
				return p.Path, nil
			}
			err = withKind(VerificationFailed, fmt.Errorf("%s still not found after install", spec.Name))
		}

		kind := classify(err)
		installErr.Attempts = append(installErr.Attempts, Attempt{Strategy: s.Name(), Kind: kind, Err: err})
		log.WithFields(logrus.Fields{"strategy": s.Name(), "kind": kind}).WithError(err).Warn("strategy failed")

		if ctx.Err() != nil {
			break
		}
	}

	if len(installErr.Attempts) == 0 {
		installErr.Kind = Unsupported
		installErr.Attempts = append(installErr.Attempts, Attempt{Strategy: "none", Kind: Unsupported, Err: errNoStrategy})
		return "", installErr
	}
	installErr.Kind = installErr.Attempts[len(installErr.Attempts)-1].Kind
	return "", installErr
}

// ManualCommand is the remediation shown when EnsureInstalled fails.
func ManualCommand(p platform.Platform, spec ToolSpec) string {
	if spec.Bootstrap != nil {
		if b, ok := spec.Bootstrap(p); ok {
			switch {
			case p.Kind == platform.Windows && len(b.Interpreter) > 0:
				return fmt.Sprintf("irm %s | iex", b.URL)
			case p.Kind == platform.Windows:
				return "download and run " + b.URL
			default:
				return fmt.Sprintf("curl -fsSL %s | %s", b.URL, b.Interpreter[0])
			}
		}
	}
	return "install " + spec.Name + " manually"
}
