// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package openai

import openaisdk "github.com/openai/openai-go"

// BuildParams exposes buildParams for white-box testing.
var BuildParams = buildParams

// ConvertResponse exposes convertResponse for white-box testing.
var ConvertResponse = func(resp *openaisdk.CreateEmbeddingResponse, want int) ([][]float32, error) {
	return convertResponse(resp, want)
}
