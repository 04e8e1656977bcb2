// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coverly Contributors

package google

// BuildContents exposes buildContents for white-box testing.
var BuildContents = buildContents

// BuildConfig exposes buildConfig for white-box testing.
var BuildConfig = buildConfig

// ConvertResponse exposes convertResponse for white-box testing.
var ConvertResponse = convertResponse
