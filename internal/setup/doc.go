// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package setup is the installation orchestrator. It sequences the probe,
// the installer, the model manager and the environment reconciler for one
// run and is the only place that decides whether a failure is fatal or a
// warning.
//
// # Failure policy
//
//   - model runtime cannot be installed: fatal
//   - assistant CLI cannot be installed: warning
//   - server does not come up: warning
//   - model pull fails: warning, setup continues so the pull can be retried
//   - GGUF import fails: fatal, there is no model name to configure
//   - model missing at the final check: warning
//   - artifacts already absent on uninstall: warning
//
// Every step is recorded in a Report, with the command to run by hand for
// anything that did not succeed.
package setup
