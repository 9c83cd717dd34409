// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput("debug", &buf))
	t.Cleanup(func() { _ = InitWithOutput(DefaultLevel, &bytes.Buffer{}) })

	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	Log.WithField("cmd", "ollama list").Debug("running command")
	assert.Contains(t, buf.String(), `cmd="ollama list"`)
}

func TestInitDefaultsToWarn(t *testing.T) {
	require.NoError(t, InitWithOutput("", &bytes.Buffer{}))
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, InitWithOutput("chatty", &bytes.Buffer{}))
}
