// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

// Schema creates the runs table. Steps are stored as a JSON array.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	started_at     INTEGER NOT NULL,
	duration_ms    INTEGER NOT NULL,
	mode           TEXT NOT NULL,
	model          TEXT NOT NULL DEFAULT '',
	context_tokens INTEGER NOT NULL DEFAULT 0,
	exit_code      INTEGER NOT NULL,
	warnings       INTEGER NOT NULL DEFAULT 0,
	steps          TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`
