// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// ManualInstructions returns markdown describing how to reach the same end
// state by hand. It is shown instead of running the pipeline on hosts the
// installer cannot automate.
func (p Platform) ManualInstructions(model string, contextTokens int) string {
	goos := runtime.GOOS
	if p.Kind.Supported() {
		goos = p.Kind.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Manual setup for %s/%s\n\n", goos, p.Arch)
	b.WriteString("rigrun-setup cannot automate this platform. The same result takes four steps.\n\n")

	b.WriteString("## 1. Install Ollama\n\n")
	b.WriteString("Download a build for your system from <https://ollama.com/download> ")
	b.WriteString("and make sure `ollama` is on your `PATH`.\n\n")

	b.WriteString("## 2. Start the runtime and pull a model\n\n")
	b.WriteString("```sh\nollama serve &\n")
	fmt.Fprintf(&b, "ollama pull %s\n```\n\n", model)

	b.WriteString("## 3. Install the claude CLI\n\n")
	b.WriteString("```sh\ncurl -fsSL https://claude.ai/install.sh | bash\n```\n\n")

	b.WriteString("## 4. Export the environment\n\n")
	b.WriteString("Add these lines to your shell startup file:\n\n```sh\n")
	fmt.Fprintf(&b, "export OLLAMA_CONTEXT_LENGTH=%d\n", contextTokens)
	b.WriteString("export ANTHROPIC_BASE_URL=http://127.0.0.1:11434\n")
	b.WriteString("export ANTHROPIC_AUTH_TOKEN=ollama\n")
	fmt.Fprintf(&b, "export ANTHROPIC_MODEL=%s\n```\n", model)
	return b.String()
}
