// Package batch provides helpers shared by tools that work on several
// calendars at once.
//
// This package includes helpers for:
//   - Parsing parameters that accept a single ID, an array or a JSON array string
//   - Summarizing per-calendar outcomes of a multi-calendar fetch
package batch
