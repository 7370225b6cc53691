// Package cmd implements the command-line interface for calquery.
//
// This package provides the following commands:
//   - serve: Start the MCP server over stdio or streamable HTTP
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
package cmd
