// Package server implements the MCP (Model Context Protocol) server for TLC
// plate analysis.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Plates and lanes:
//   - tlc_load_plate: Load a plate image and get metadata
//   - tlc_preview_lane: Draw a lane and its band on a crop of the plate
//
// Analysis:
//   - tlc_extract_profile: Extract and filter one lane without peak detection
//   - tlc_analyze_lane: Full pipeline over one or more lanes
//   - tlc_integrate_manual: Manual boundaries and region integration
//   - tlc_compare_lanes: Normalize and align chromatograms
//
// Output:
//   - tlc_export_csv: Peak table, profile, comparison CSV or JSON record
//   - tlc_open_record: Reload a saved JSON record, profile or peak table
//   - tlc_render_chromatogram: PNG plot of one or several chromatograms
//
// Configuration:
//   - tlc_config: Get, set, load, save or reset the base configuration
//
// # State
//
// Analyzed chromatograms are kept in memory by ID for the life of the
// process. Tools that modify a chromatogram work on a copy and store it only
// on success, so a rejected request leaves the stored record unchanged.
//
// Each analysis call starts from a copy of the base configuration with the
// request's "config" overrides applied; only tlc_config changes the base.
//
// # Error Handling
//
// Tool errors are JSON-RPC errors whose data carries the error type (for
// example INVALID_BOUNDARY). Argument errors use code -32602 and execution
// failures -32000.
package server
