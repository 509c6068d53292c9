package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the plate image",
}

// lineProperty describes a chrom.ProfileLine.
var lineProperty = map[string]interface{}{
	"type":        "object",
	"description": "Lane path over the plate: ordered points in pixels (x right, y down) and the perpendicular band width averaged at each sample",
	"properties": map[string]interface{}{
		"name": map[string]interface{}{
			"type":        "string",
			"description": "Lane name used in labels and exports",
		},
		"points": map[string]interface{}{
			"type":        "array",
			"description": "At least 2 points; consecutive points must differ",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"x": map[string]interface{}{"type": "number"},
					"y": map[string]interface{}{"type": "number"},
				},
				"required": []string{"x", "y"},
			},
		},
		"band_width": map[string]interface{}{
			"type":        "number",
			"description": "Band width in pixels. 0 samples the path itself",
			"default":     0,
		},
	},
	"required": []string{"points"},
}

var configProperty = map[string]interface{}{
	"type":        "object",
	"description": "Partial configuration overriding the server configuration for this call (same keys as tlc_config get)",
}

var idProperty = map[string]interface{}{
	"type":        "string",
	"description": "Chromatogram ID returned by tlc_analyze_lane, tlc_extract_profile or tlc_compare_lanes",
}

var idsProperty = map[string]interface{}{
	"type":        "array",
	"description": "Chromatogram IDs",
	"items":       map[string]interface{}{"type": "string"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Plates and lanes
		{
			Name:        "tlc_load_plate",
			Description: "Load a TLC plate image and return its dimensions, format and color depth. The image is cached for later calls; set reload after editing the file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"reload": map[string]interface{}{
						"type":        "boolean",
						"description": "Drop the cached copy and read the file again",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_preview_lane",
			Description: "Draw a lane path and its band edges on the plate and return the crop around the band as base64-encoded PNG. Use this to check lane placement before analysis.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"line": lineProperty,
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Path color as #RRGGBB. Default red",
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels kept around the band. Default 10",
						"default":     10,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Scale factor for the crop. Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path", "line"},
			},
		},

		// Analysis
		{
			Name:        "tlc_extract_profile",
			Description: "Extract and filter the intensity profile along one lane without detecting peaks. The result is stored and can receive manual regions via tlc_integrate_manual.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   pathProperty,
					"line":   lineProperty,
					"config": configProperty,
				},
				"required": []string{"path", "line"},
			},
		},
		{
			Name:        "tlc_analyze_lane",
			Description: "Run the full chromatogram analysis on one or more lanes: extraction, filtering, peak detection, integration and peak fitting. Lanes run concurrently; a failing lane reports its error without stopping the others.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"line": lineProperty,
					"lanes": map[string]interface{}{
						"type":        "array",
						"description": "Several lanes on the same plate",
						"items":       lineProperty,
					},
					"config": configProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_integrate_manual",
			Description: "Set peak boundaries by hand. Give peak with left and right to re-integrate one peak, bounds to re-integrate every peak, or from and to (positions) to integrate a region as a new peak. Affected peaks are refitted.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": idProperty,
					"peak": map[string]interface{}{
						"type":        "integer",
						"description": "Index of the peak to re-integrate",
					},
					"left": map[string]interface{}{
						"type":        "integer",
						"description": "Left boundary sample index",
					},
					"right": map[string]interface{}{
						"type":        "integer",
						"description": "Right boundary sample index",
					},
					"bounds": map[string]interface{}{
						"type":        "array",
						"description": "Boundaries for every peak in peak order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"left":  map[string]interface{}{"type": "integer"},
								"right": map[string]interface{}{"type": "integer"},
							},
							"required": []string{"left", "right"},
						},
					},
					"from": map[string]interface{}{
						"type":        "number",
						"description": "Region start position in pixels along the lane",
					},
					"to": map[string]interface{}{
						"type":        "number",
						"description": "Region end position in pixels along the lane",
					},
					"config": configProperty,
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        "tlc_compare_lanes",
			Description: "Normalize chromatograms to a common basis (max intensity, total area or a reference peak) and optionally align them on the reference peak. Results are stored under new IDs; the inputs are unchanged.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ids": idsProperty,
					"normalization": map[string]interface{}{
						"type":        "object",
						"description": "Overrides: basis (none, max, totalArea, referencePeak), reference_label, reference_position, reference_tolerance, align, reference_index",
					},
				},
				"required": []string{"ids"},
			},
		},

		// Output
		{
			Name:        "tlc_export_csv",
			Description: "Export a chromatogram as a CSV peak table, a CSV profile (position, raw, filtered, is_peak), a combined comparison CSV, or a JSON record. JSON is the lossless format; a profile CSV keeps only apex positions, and its boundaries and fits can be restored from a peaks CSV with tlc_open_record. Writes to path when given, otherwise returns the content.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":  idProperty,
					"ids": idsProperty,
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Output format",
						"enum":        []string{"peaks", "profile", "comparison", "json"},
						"default":     "peaks",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Output file path",
					},
				},
			},
		},
		{
			Name:        "tlc_open_record",
			Description: "Open a saved record. A JSON record or profile CSV is stored as a new chromatogram, ready for manual integration, comparison or export. A peaks CSV replaces the peaks of the chromatogram given by id, restoring boundaries and fits.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Saved file written by tlc_export_csv",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Record format",
						"enum":        []string{"json", "profile", "peaks"},
						"default":     "json",
					},
					"id": idProperty,
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Lane name for a profile CSV. Default: the file name",
					},
					"config": configProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "tlc_render_chromatogram",
			Description: "Plot a chromatogram as PNG with apex markers, baselines and fitted curves, or overlay several chromatograms. Returns base64 PNG unless path is given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":  idProperty,
					"ids": idsProperty,
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Overlay title",
					},
					"show_raw": map[string]interface{}{
						"type":        "boolean",
						"description": "Also draw the unfiltered profile",
						"default":     false,
					},
					"width": map[string]interface{}{
						"type":        "number",
						"description": "Width in inches. Default 8",
						"default":     8,
					},
					"height": map[string]interface{}{
						"type":        "number",
						"description": "Height in inches. Default 4",
						"default":     4,
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Output PNG path",
					},
				},
			},
		},

		{
			Name:        "tlc_config",
			Description: "Get, set, load, save or reset the server configuration used by later calls. set applies a partial configuration.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"action": map[string]interface{}{
						"type":    "string",
						"enum":    []string{"get", "set", "load", "save", "reset"},
						"default": "get",
					},
					"config": configProperty,
					"path": map[string]interface{}{
						"type":        "string",
						"description": "YAML configuration file for load and save",
					},
				},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
