// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// Context sizes written to OLLAMA_CONTEXT_LENGTH.
const (
	ContextSmall  = 4096
	ContextMedium = 32768
	ContextLarge  = 262144
)

// ContextForVRAM maps GPU memory onto a context window:
// under 24GB → 4096, 24 to 47GB → 32768, 48GB and up → 262144.
// Undetectable VRAM (0) takes the smallest window.
func ContextForVRAM(vramGB int) int {
	switch {
	case vramGB >= 48:
		return ContextLarge
	case vramGB >= 24:
		return ContextMedium
	default:
		return ContextSmall
	}
}

// ModelRecommendation represents a model recommendation with metadata.
type ModelRecommendation struct {
	ModelName   string
	Description string
	// VRAMNeededGB is the approximate footprint at Q4_K_M.
	VRAMNeededGB int
	Quality      string // "fast", "balanced", "best"
}

// RecommendModel recommends a coding model for the given VRAM in GB.
//
// Tiers follow the Qwen 2.5 Coder family; 14B is the sweet spot for
// 12-16GB GPUs.
func RecommendModel(vramGB int) ModelRecommendation {
	switch {
	case vramGB < 4:
		return ModelRecommendation{
			ModelName:    "qwen2.5-coder:1.5b",
			Description:  "Minimal model for very limited or undetected VRAM",
			VRAMNeededGB: 2,
			Quality:      "fast",
		}
	case vramGB < 6:
		return ModelRecommendation{
			ModelName:    "qwen2.5-coder:3b",
			Description:  "Best for limited VRAM, fast inference",
			VRAMNeededGB: 4,
			Quality:      "fast",
		}
	case vramGB < 12:
		return ModelRecommendation{
			ModelName:    "qwen2.5-coder:7b",
			Description:  "Excellent all-rounder",
			VRAMNeededGB: 6,
			Quality:      "balanced",
		}
	case vramGB < 24:
		return ModelRecommendation{
			ModelName:    "qwen2.5-coder:14b",
			Description:  "Best performance per GB of VRAM",
			VRAMNeededGB: 10,
			Quality:      "best",
		}
	default:
		return ModelRecommendation{
			ModelName:    "qwen2.5-coder:32b",
			Description:  "Largest coder model, for 24GB+ cards",
			VRAMNeededGB: 20,
			Quality:      "best",
		}
	}
}

var paramCountRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)b\b`)

// EstimateModelSizeGB estimates the download size of a model from the
// parameter count in its tag, assuming Q4_K_M (about 0.56 bytes per
// parameter). Unknown tags return 5.
func EstimateModelSizeGB(modelName string) int {
	matches := paramCountRegex.FindStringSubmatch(strings.ToLower(modelName))
	if len(matches) < 2 {
		return 5
	}
	billions, err := strconv.ParseFloat(matches[1], 64)
	if err != nil || billions <= 0 {
		return 5
	}
	return int(billions*0.56 + 0.999)
}
