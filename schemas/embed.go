// Package schemas embeds the JSON Schemas used to check generative-model replies.
package schemas

import "embed"

// Schema file names.
const (
	ScoreResult    = "score_result.schema.json"
	InsightsBundle = "insights_bundle.schema.json"
)

// Files holds the embedded schema documents.
//
//go:embed *.schema.json
var Files embed.FS
