package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	"github.com/FabioSangalli/nTLCanalyzer/internal/compare"
	"github.com/FabioSangalli/nTLCanalyzer/internal/config"
	"github.com/FabioSangalli/nTLCanalyzer/internal/detection"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/export"
	"github.com/FabioSangalli/nTLCanalyzer/internal/extract"
	"github.com/FabioSangalli/nTLCanalyzer/internal/filter"
	"github.com/FabioSangalli/nTLCanalyzer/internal/imaging"
	"github.com/FabioSangalli/nTLCanalyzer/internal/integration"
	"github.com/FabioSangalli/nTLCanalyzer/internal/logger"
	"github.com/FabioSangalli/nTLCanalyzer/internal/pipeline"
	"github.com/FabioSangalli/nTLCanalyzer/internal/render"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "tlc_load_plate", "tlc_analyze_lane").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Errors caused by the arguments (bad geometry, parameters or boundaries, an
// empty profile) return code -32602; other failures return -32000. The error
// data carries the error type so clients can tell them apart.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		logger.WithError(err).WithField("tool", params.Name).Warn("tool failed")
		code := -32000
		if invalidArgument(err) {
			code = -32602
		}
		return s.errorResponse(req.ID, code, "Tool execution failed", errorData(err))
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Plates and lanes
	case "tlc_load_plate":
		return s.handleLoadPlate(args)
	case "tlc_preview_lane":
		return s.handlePreviewLane(args)

	// Analysis
	case "tlc_extract_profile":
		return s.handleExtractProfile(args)
	case "tlc_analyze_lane":
		return s.handleAnalyzeLane(args)
	case "tlc_integrate_manual":
		return s.handleIntegrateManual(args)
	case "tlc_compare_lanes":
		return s.handleCompareLanes(args)

	// Output
	case "tlc_open_record":
		return s.handleOpenRecord(args)
	case "tlc_export_csv":
		return s.handleExport(args)
	case "tlc_render_chromatogram":
		return s.handleRender(args)

	case "tlc_config":
		return s.handleConfig(args)

	default:
		return nil, apperrors.NewInvalidParameters("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func invalidArgument(err error) bool {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInvalidGeometry, apperrors.ErrorTypeInvalidParameters,
		apperrors.ErrorTypeInvalidBoundary, apperrors.ErrorTypeEmptyProfile:
		return true
	}
	return false
}

func errorData(err error) map[string]interface{} {
	data := map[string]interface{}{"message": err.Error()}
	if t := apperrors.TypeOf(err); t != "" {
		data["type"] = string(t)
	}
	return data
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decode unmarshals tool arguments. Missing arguments decode as an empty
// object.
func decode(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, "invalid arguments", err)
	}
	return nil
}

// withOverrides returns a copy of the base configuration with the JSON
// overrides applied. Only the keys present in raw change.
func (s *Server) withOverrides(raw json.RawMessage) (*config.Config, error) {
	cfg := s.baseConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, "invalid config overrides", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Server) chromatogram(id string) (*chrom.Chromatogram, error) {
	c, ok := s.lookup(id)
	if !ok {
		return nil, apperrors.NewInvalidParameters("unknown chromatogram %q", id).WithDetail("id", id)
	}
	return c, nil
}

func (s *Server) chromatograms(ids []string) ([]*chrom.Chromatogram, error) {
	if len(ids) == 0 {
		return nil, apperrors.NewInvalidParameters("no chromatogram ids given")
	}
	out := make([]*chrom.Chromatogram, len(ids))
	for i, id := range ids {
		c, err := s.chromatogram(id)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// === Plate Handlers ===

type loadPlateArgs struct {
	Path string `json:"path"`
	// Reload drops the cached plate and its despeckled variants first.
	Reload bool `json:"reload"`
}

func (s *Server) handleLoadPlate(args json.RawMessage) (interface{}, error) {
	var a loadPlateArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Reload {
		s.cache.Evict(a.Path)
	}
	return imaging.LoadPlateInfo(s.cache, a.Path)
}

type previewLaneArgs struct {
	Path   string            `json:"path"`
	Line   chrom.ProfileLine `json:"line"`
	Color  string            `json:"color"`
	Margin int               `json:"margin"`
	Scale  float64           `json:"scale"`
}

func (s *Server) handlePreviewLane(args json.RawMessage) (interface{}, error) {
	var a previewLaneArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.LanePreview(img, a.Line, imaging.PreviewOptions{Color: a.Color, Margin: a.Margin, Scale: a.Scale})
}

// === Analysis Handlers ===

type laneArgs struct {
	Path   string              `json:"path"`
	Line   *chrom.ProfileLine  `json:"line,omitempty"`
	Lanes  []chrom.ProfileLine `json:"lanes,omitempty"`
	Config json.RawMessage     `json:"config,omitempty"`
}

func (a laneArgs) lines() ([]chrom.ProfileLine, error) {
	var lines []chrom.ProfileLine
	if a.Line != nil {
		lines = append(lines, *a.Line)
	}
	lines = append(lines, a.Lanes...)
	if len(lines) == 0 {
		return nil, apperrors.NewInvalidGeometry("no lane given: set line or lanes")
	}
	return lines, nil
}

type profileResult struct {
	ID       string                 `json:"id"`
	Profile  *chrom.Profile         `json:"profile"`
	Filtered *chrom.FilteredProfile `json:"filtered"`
}

// handleExtractProfile extracts and filters one lane without detecting peaks.
// The stored chromatogram can still receive manual regions.
func (s *Server) handleExtractProfile(args json.RawMessage) (interface{}, error) {
	var a laneArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	lines, err := a.lines()
	if err != nil {
		return nil, err
	}
	if len(lines) != 1 {
		return nil, apperrors.NewInvalidParameters("extract takes one lane, got %d", len(lines))
	}
	cfg, err := s.withOverrides(a.Config)
	if err != nil {
		return nil, err
	}
	chain, err := filter.BuildChain(cfg.Filters)
	if err != nil {
		return nil, err
	}
	field, _, err := pipeline.OpenField(s.cache, a.Path, cfg)
	if err != nil {
		return nil, err
	}

	line := lines[0]
	c := chrom.NewChromatogram(line.Name)
	c.Line = &line
	if c.Profile, err = extract.Extract(field, line, cfg.Extraction.Options); err != nil {
		return nil, err
	}
	if c.Filtered, err = filter.Apply(c.Profile, chain...); err != nil {
		return nil, err
	}
	s.store(c)
	return &profileResult{ID: c.ID, Profile: c.Profile, Filtered: c.Filtered}, nil
}

type laneSummary struct {
	Index     int                    `json:"index"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Samples   int                    `json:"samples,omitempty"`
	Peaks     []chrom.Peak           `json:"peaks,omitempty"`
	TotalArea float64                `json:"total_area,omitempty"`
	Warnings  []string               `json:"warnings,omitempty"`
	Rejected  *detection.Rejections  `json:"rejected,omitempty"`
	Error     map[string]interface{} `json:"error,omitempty"`
}

type analyzeResult struct {
	Lanes  []laneSummary `json:"lanes"`
	Failed int           `json:"failed"`
}

func summarize(c *chrom.Chromatogram) laneSummary {
	l := laneSummary{ID: c.ID, Name: c.Name, Peaks: c.Peaks, TotalArea: c.TotalArea(), Warnings: c.Warnings}
	if c.Filtered != nil {
		l.Samples = c.Filtered.Len()
	}
	return l
}

func (s *Server) handleAnalyzeLane(args json.RawMessage) (interface{}, error) {
	var a laneArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	lines, err := a.lines()
	if err != nil {
		return nil, err
	}
	cfg, err := s.withOverrides(a.Config)
	if err != nil {
		return nil, err
	}
	field, _, err := pipeline.OpenField(s.cache, a.Path, cfg)
	if err != nil {
		return nil, err
	}

	out := &analyzeResult{}
	for _, r := range pipeline.RunBatch(context.Background(), field, lines, cfg) {
		if r.Err != nil {
			out.Failed++
			out.Lanes = append(out.Lanes, laneSummary{Index: r.Index, Name: lines[r.Index].Name, Error: errorData(r.Err)})
			continue
		}
		s.store(r.Chromatogram)
		l := summarize(r.Chromatogram)
		l.Index = r.Index
		l.Rejected = r.Detection
		out.Lanes = append(out.Lanes, l)
	}
	logger.WithField("lanes", len(lines)).WithField("failed", out.Failed).Info("lanes analyzed")
	return out, nil
}

type integrateArgs struct {
	ID string `json:"id"`

	// Peak, Left and Right set the boundaries of one peak by sample index.
	Peak  *int `json:"peak,omitempty"`
	Left  int  `json:"left"`
	Right int  `json:"right"`

	// Bounds sets the boundaries of every peak, in peak order.
	Bounds []integration.Bounds `json:"bounds,omitempty"`

	// From and To select a region by position and integrate it as a new peak.
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`

	Config json.RawMessage `json:"config,omitempty"`
}

type integrateResult struct {
	laneSummary
	// Changed is the index of the peak that was integrated or added; -1 when
	// all peaks were.
	Changed int `json:"changed"`
}

// handleIntegrateManual works on a copy of the stored chromatogram and
// replaces it only on success.
func (s *Server) handleIntegrateManual(args json.RawMessage) (interface{}, error) {
	var a integrateArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	stored, err := s.chromatogram(a.ID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.withOverrides(a.Config)
	if err != nil {
		return nil, err
	}

	c := stored.Clone()
	changed := -1
	switch {
	case len(a.Bounds) > 0:
		err = pipeline.Reintegrate(c, a.Bounds, cfg)
	case a.From != nil || a.To != nil:
		if a.From == nil || a.To == nil {
			return nil, apperrors.NewInvalidParameters("region needs both from and to")
		}
		changed, err = pipeline.AddRegion(c, *a.From, *a.To, cfg)
	case a.Peak != nil:
		changed = *a.Peak
		err = pipeline.IntegratePeak(c, changed, integration.Bounds{Left: a.Left, Right: a.Right}, cfg)
	default:
		return nil, apperrors.NewInvalidParameters("set peak with left and right, bounds, or from and to")
	}
	if err != nil {
		return nil, err
	}
	s.store(c)
	return &integrateResult{laneSummary: summarize(c), Changed: changed}, nil
}

type compareArgs struct {
	IDs           []string        `json:"ids"`
	Normalization json.RawMessage `json:"normalization,omitempty"`
}

type comparedLane struct {
	ID        string       `json:"id"`
	SourceID  string       `json:"source_id"`
	Name      string       `json:"name,omitempty"`
	Scale     float64      `json:"scale"`
	Shift     float64      `json:"shift"`
	TotalArea float64      `json:"total_area"`
	Peaks     []chrom.Peak `json:"peaks"`
}

// handleCompareLanes stores each normalized chromatogram under a new ID so it
// can be exported or rendered; the sources are unchanged.
func (s *Server) handleCompareLanes(args json.RawMessage) (interface{}, error) {
	var a compareArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	chroms, err := s.chromatograms(a.IDs)
	if err != nil {
		return nil, err
	}
	opts := s.baseConfig().Normalization
	if len(a.Normalization) > 0 {
		if err := json.Unmarshal(a.Normalization, &opts); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrorTypeInvalidParameters, "invalid normalization options", err)
		}
	}

	out, err := compare.Compare(chroms, opts)
	if err != nil {
		return nil, err
	}
	lanes := make([]comparedLane, len(out))
	for i, c := range out {
		c.ID = uuid.New().String()
		s.store(c)
		lanes[i] = comparedLane{
			ID: c.ID, SourceID: a.IDs[i], Name: c.Name,
			Scale: c.Scale, Shift: c.Shift, TotalArea: c.TotalArea(), Peaks: c.Peaks,
		}
	}
	return map[string]interface{}{"basis": opts.Basis, "lanes": lanes}, nil
}

// === Output Handlers ===

type exportArgs struct {
	ID  string   `json:"id"`
	IDs []string `json:"ids"`
	// Format is peaks, profile, comparison or json. Default peaks.
	Format string `json:"format"`
	// Path, when set, receives the output; otherwise it is returned inline.
	Path string `json:"path"`
}

func (s *Server) handleExport(args json.RawMessage) (interface{}, error) {
	var a exportArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Format == "" {
		a.Format = "peaks"
	}
	ids := a.IDs
	if a.ID != "" {
		ids = append([]string{a.ID}, ids...)
	}
	chroms, err := s.chromatograms(ids)
	if err != nil {
		return nil, err
	}

	var write func(io.Writer) error
	switch a.Format {
	case "peaks":
		write = func(w io.Writer) error { return export.WritePeaksCSV(w, chroms[0].Peaks) }
	case "profile":
		write = func(w io.Writer) error { return export.WriteProfileCSV(w, chroms[0]) }
	case "comparison":
		write = func(w io.Writer) error { return export.WriteComparisonCSV(w, chroms) }
	case "json":
		write = func(w io.Writer) error {
			data, err := export.MarshalChromatogram(chroms[0])
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}
	default:
		return nil, apperrors.NewInvalidParameters("unknown export format %q (want peaks, profile, comparison or json)", a.Format)
	}

	if a.Path != "" {
		if err := export.WriteFile(a.Path, write); err != nil {
			return nil, err
		}
		return map[string]interface{}{"format": a.Format, "path": a.Path}, nil
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, err
	}
	return map[string]interface{}{"format": a.Format, "content": buf.String()}, nil
}

type openArgs struct {
	Path string `json:"path"`
	// Format is json, profile or peaks. Default json.
	Format string `json:"format"`
	// ID names the stored chromatogram that receives a peaks table.
	ID string `json:"id"`
	// Name labels a profile CSV; defaults to the file name.
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config,omitempty"`
}

// handleOpenRecord loads a saved record. A JSON record or profile CSV becomes
// a new stored chromatogram; a peaks table replaces the peaks of an existing
// one, restoring their boundaries and fits.
func (s *Server) handleOpenRecord(args json.RawMessage) (interface{}, error) {
	var a openArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, apperrors.NewInvalidParameters("open needs a path")
	}
	if a.Format == "" {
		a.Format = "json"
	}
	cfg, err := s.withOverrides(a.Config)
	if err != nil {
		return nil, err
	}

	var c *chrom.Chromatogram
	switch a.Format {
	case "json":
		err = export.ReadFile(a.Path, func(r io.Reader) error {
			data, err := io.ReadAll(r)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrorTypeIO, "reading saved record", err).WithDetail("path", a.Path)
			}
			c, err = export.UnmarshalChromatogram(data)
			return err
		})
	case "profile":
		name := a.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
		}
		err = export.ReadFile(a.Path, func(r io.Reader) error {
			var err error
			c, err = export.ReadProfileCSV(r, name)
			return err
		})
	case "peaks":
		stored, err := s.chromatogram(a.ID)
		if err != nil {
			return nil, err
		}
		if stored.Filtered == nil {
			return nil, apperrors.NewEmptyProfile("chromatogram %q has no filtered profile", stored.Name)
		}
		var peaks []chrom.Peak
		err = export.ReadFile(a.Path, func(r io.Reader) error {
			var err error
			peaks, err = export.ReadPeaksCSV(r)
			return err
		})
		if err != nil {
			return nil, err
		}
		if err := integration.ValidatePeaks(stored.Filtered, peaks); err != nil {
			return nil, err
		}
		c = stored.Clone()
		c.Peaks = peaks
		s.store(c)
		return summarize(c), nil
	default:
		return nil, apperrors.NewInvalidParameters("unknown record format %q (want json, profile or peaks)", a.Format)
	}
	if err != nil {
		return nil, err
	}

	if c.Profile == nil || c.Profile.Len() == 0 {
		return nil, apperrors.NewEmptyProfile("saved record %s has no profile", a.Path)
	}
	if c.Filtered == nil {
		chain, err := filter.BuildChain(cfg.Filters)
		if err != nil {
			return nil, err
		}
		if c.Filtered, err = filter.Apply(c.Profile, chain...); err != nil {
			return nil, err
		}
	}
	if err := integration.ValidatePeaks(c.Filtered, c.Peaks); err != nil {
		return nil, err
	}
	if _, taken := s.lookup(c.ID); taken || c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	s.store(c)
	logger.WithField("path", a.Path).WithField("format", a.Format).Info("record opened")
	return summarize(c), nil
}

type renderArgs struct {
	ID      string   `json:"id"`
	IDs     []string `json:"ids"`
	Title   string   `json:"title"`
	ShowRaw bool     `json:"show_raw"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Path    string   `json:"path"`
}

type renderResult struct {
	MimeType    string `json:"mime_type"`
	Bytes       int    `json:"bytes"`
	Path        string `json:"path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// handleRender plots one chromatogram, or overlays several when more than one
// ID is given.
func (s *Server) handleRender(args json.RawMessage) (interface{}, error) {
	var a renderArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	ids := a.IDs
	if a.ID != "" {
		ids = append([]string{a.ID}, ids...)
	}
	chroms, err := s.chromatograms(ids)
	if err != nil {
		return nil, err
	}

	opts := render.Options{
		Width:         a.Width,
		Height:        a.Height,
		ShowRaw:       a.ShowRaw,
		FitOnBaseline: s.baseConfig().Fitting.SubtractBaseline,
	}
	var data []byte
	if len(chroms) == 1 {
		data, err = render.Chromatogram(chroms[0], opts)
	} else {
		data, err = render.Overlay(chroms, a.Title, opts)
	}
	if err != nil {
		return nil, err
	}

	out := &renderResult{MimeType: "image/png", Bytes: len(data)}
	if a.Path != "" {
		err := export.WriteFile(a.Path, func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
		if err != nil {
			return nil, err
		}
		out.Path = a.Path
		return out, nil
	}
	out.ImageBase64 = base64.StdEncoding.EncodeToString(data)
	return out, nil
}

type configArgs struct {
	// Action is get, set, load, save or reset. Default get.
	Action string          `json:"action"`
	Config json.RawMessage `json:"config,omitempty"`
	Path   string          `json:"path"`
}

// handleConfig reads or replaces the base configuration used by later calls.
func (s *Server) handleConfig(args json.RawMessage) (interface{}, error) {
	var a configArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error
	switch a.Action {
	case "", "get":
		return s.baseConfig(), nil
	case "set":
		cfg, err = s.withOverrides(a.Config)
	case "load":
		if a.Path == "" {
			return nil, apperrors.NewInvalidParameters("load needs a path")
		}
		cfg, err = config.LoadConfig(a.Path)
	case "save":
		if a.Path == "" {
			return nil, apperrors.NewInvalidParameters("save needs a path")
		}
		cfg = s.baseConfig()
		if err := config.SaveConfig(cfg, a.Path); err != nil {
			return nil, err
		}
		return map[string]interface{}{"path": a.Path}, nil
	case "reset":
		cfg = config.DefaultConfig()
	default:
		return nil, apperrors.NewInvalidParameters("unknown config action %q (want get, set, load, save or reset)", a.Action)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	logger.WithField("action", a.Action).Info("configuration updated")
	return cfg.Clone(), nil
}
