package pipeline

import (
	"context"
	"fmt"
	"image"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	"github.com/FabioSangalli/nTLCanalyzer/internal/config"
	"github.com/FabioSangalli/nTLCanalyzer/internal/detection"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
	"github.com/FabioSangalli/nTLCanalyzer/internal/extract"
	"github.com/FabioSangalli/nTLCanalyzer/internal/filter"
	"github.com/FabioSangalli/nTLCanalyzer/internal/fitting"
	"github.com/FabioSangalli/nTLCanalyzer/internal/imaging"
	"github.com/FabioSangalli/nTLCanalyzer/internal/integration"
	"github.com/FabioSangalli/nTLCanalyzer/internal/logger"
)

// Result is the outcome of one lane in a batch.
type Result struct {
	Index        int                   `json:"index"`
	Chromatogram *chrom.Chromatogram   `json:"chromatogram,omitempty"`
	Detection    *detection.Rejections `json:"rejected,omitempty"`
	Err          error                 `json:"-"`
}

// OpenField loads the plate at path through cache, applying the configured
// despeckle, and reduces it to an intensity field.
func OpenField(cache *imaging.ImageCache, path string, cfg *config.Config) (imaging.Field, image.Image, error) {
	img, err := cache.LoadPlate(path, cfg.Extraction.MedianRadius)
	if err != nil {
		return nil, nil, err
	}
	field, err := imaging.NewImageField(img, cfg.Extraction.Reduction, cfg.Extraction.Channel)
	if err != nil {
		return nil, nil, err
	}
	return field, img, nil
}

// Run analyzes one lane: extraction, filtering, detection, then automatic
// integration and fitting. In manual integration mode the peaks are returned
// without boundaries; Reintegrate supplies them later.
//
// Any error other than a fit failure aborts the lane and no Chromatogram is
// returned. Fit failures, clamps and clipped samples are recorded in
// Chromatogram.Warnings.
func Run(field imaging.Field, line chrom.ProfileLine, cfg *config.Config) (*chrom.Chromatogram, error) {
	c, _, err := run(field, line, cfg)
	return c, err
}

func run(field imaging.Field, line chrom.ProfileLine, cfg *config.Config) (*chrom.Chromatogram, *detection.Result, error) {
	log := logger.WithFields(logrus.Fields{"lane": line.Name, "points": len(line.Points), "band_width": line.BandWidth})
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	chain, err := filter.BuildChain(cfg.Filters)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	profile, err := extract.Extract(field, line, cfg.Extraction.Options)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{"samples": profile.Len(), "elapsed": time.Since(start).String()}).Debug("profile extracted")

	c := chrom.NewChromatogram(line.Name)
	lineCopy := line
	lineCopy.Points = append([]chrom.Point(nil), line.Points...)
	c.Line = &lineCopy
	c.Profile = profile
	if profile.Clip.Clipped() {
		c.Warnings = append(c.Warnings, fmt.Sprintf("profile line leaves the plate: %d samples clamped, %d excluded, %d positions dropped",
			profile.Clip.ClampedSamples, profile.Clip.ExcludedSamples, profile.Clip.ExcludedPositions))
	}

	start = time.Now()
	c.Filtered, err = filter.Apply(profile, chain...)
	if err != nil {
		return nil, nil, err
	}
	log.WithField("elapsed", time.Since(start).String()).Debug("profile filtered")

	det, err := detection.Detect(c.Filtered, cfg.Detection)
	if err != nil {
		return nil, nil, err
	}
	c.Peaks = det.Peaks
	labelPeaks(c.Peaks)
	log.WithFields(logrus.Fields{
		"peaks":          len(det.Peaks),
		"candidates":     det.Candidates,
		"below_height":   det.Rejected.BelowHeight,
		"too_close":      det.Rejected.TooClose,
		"low_prominence": det.Rejected.LowProminence,
		"too_narrow":     det.Rejected.TooNarrow,
	}).Debug("peaks detected")

	if cfg.Integration.Mode == integration.ModeManual {
		if len(c.Peaks) > 0 {
			c.Warnings = append(c.Warnings, "manual integration mode: peaks await boundaries")
		}
		return c, det, nil
	}

	c.Baseline, err = integration.Integrate(c.Filtered, c.Peaks, cfg.Integration)
	if err != nil {
		return nil, nil, err
	}
	c.Warnings = append(c.Warnings, clampWarnings(c.Peaks)...)

	if err := refit(c, cfg, log); err != nil {
		return nil, nil, err
	}
	return c, det, nil
}

// RunBatch analyzes lanes concurrently on at most cfg.WorkerCount() workers.
// Results are in lane order; a failing lane carries its error and does not
// stop the others. Lanes not started before ctx is cancelled report ctx.Err().
func RunBatch(ctx context.Context, field imaging.Field, lines []chrom.ProfileLine, cfg *config.Config) []Result {
	results := make([]Result, len(lines))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.WorkerCount())

	for i, line := range lines {
		g.Go(func() error {
			results[i].Index = i
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			c, det, err := run(field, line, cfg)
			if err != nil {
				logger.WithError(err).WithField("lane", line.Name).Warn("lane analysis failed")
				results[i].Err = err
				return nil
			}
			results[i].Chromatogram = c
			results[i].Detection = &det.Rejected
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// FitAll fits every integrated peak of f concurrently, jointly per
// overlapping group when opts.JointFit is set. Fit failures are returned as
// warnings with the peak marked invalid; any other error aborts.
func FitAll(f *chrom.FilteredProfile, peaks []chrom.Peak, baseline []float64, opts fitting.Options, workers int) ([]string, error) {
	var groups [][]int
	if opts.JointFit {
		groups = fitting.Groups(peaks)
	} else {
		for i, p := range peaks {
			if p.Integrated {
				groups = append(groups, []int{i})
			}
		}
	}

	fits := make([][]chrom.FitResult, len(groups))
	failures := make([]error, len(groups))
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for gi, members := range groups {
		g.Go(func() error {
			group := make([]chrom.Peak, len(members))
			for k, i := range members {
				group[k] = peaks[i]
			}
			res, err := fitting.FitGroup(f, group, baseline, opts)
			if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeFitNonConvergence) {
				return err
			}
			fits[gi] = res
			failures[gi] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var warnings []string
	for gi, members := range groups {
		for k, i := range members {
			fit := fits[gi][k]
			peaks[i].Fit = &fit
		}
		if failures[gi] != nil {
			warnings = append(warnings, failures[gi].Error())
		}
	}
	return warnings, nil
}

// Reintegrate applies manual boundaries to every peak of c and refits.
func Reintegrate(c *chrom.Chromatogram, bounds []integration.Bounds, cfg *config.Config) error {
	if c.Filtered == nil {
		return apperrors.NewEmptyProfile("chromatogram %q has no filtered profile", c.Name)
	}
	baseline, err := integration.IntegrateBounds(c.Filtered, c.Peaks, bounds, cfg.Integration)
	if err != nil {
		return err
	}
	c.Baseline = baseline
	c.Warnings = append(c.Warnings, clampWarnings(c.Peaks)...)
	return refit(c, cfg, logger.WithField("lane", c.Name))
}

// IntegratePeak applies manual boundaries to peak k of c and refits it.
func IntegratePeak(c *chrom.Chromatogram, k int, b integration.Bounds, cfg *config.Config) error {
	if c.Filtered == nil {
		return apperrors.NewEmptyProfile("chromatogram %q has no filtered profile", c.Name)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if k < 0 || k >= len(c.Peaks) {
		return apperrors.NewInvalidParameters("peak %d out of range for %d peaks", k, len(c.Peaks))
	}
	applyBaseline(c, cfg)
	if err := integration.IntegrateManual(c.Filtered, &c.Peaks[k], b, c.Baseline); err != nil {
		return err
	}
	c.Warnings = append(c.Warnings, clampWarnings(c.Peaks[k:k+1])...)
	return refit(c, cfg, logger.WithField("lane", c.Name))
}

// AddRegion integrates a user-selected region as a new peak, keeping the
// peaks ordered by apex, and returns its index.
func AddRegion(c *chrom.Chromatogram, from, to float64, cfg *config.Config) (int, error) {
	if c.Filtered == nil {
		return -1, apperrors.NewEmptyProfile("chromatogram %q has no filtered profile", c.Name)
	}
	if err := cfg.Validate(); err != nil {
		return -1, err
	}
	applyBaseline(c, cfg)
	p, err := integration.IntegrateRegion(c.Filtered, from, to, c.Baseline)
	if err != nil {
		return -1, err
	}
	p.Label = fmt.Sprintf("R%d", len(c.Peaks)+1)
	k := sort.Search(len(c.Peaks), func(i int) bool { return c.Peaks[i].Apex >= p.Apex })
	c.Peaks = append(c.Peaks, chrom.Peak{})
	copy(c.Peaks[k+1:], c.Peaks[k:])
	c.Peaks[k] = p
	return k, refit(c, cfg, logger.WithField("lane", c.Name))
}

func refit(c *chrom.Chromatogram, cfg *config.Config, log *logrus.Entry) error {
	if !cfg.Fitting.Enabled {
		return nil
	}
	start := time.Now()
	warnings, err := FitAll(c.Filtered, c.Peaks, c.Baseline, cfg.Fitting, cfg.WorkerCount())
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.WithField("reason", w).Warn("peak fit invalid")
	}
	c.Warnings = append(c.Warnings, warnings...)
	log.WithFields(logrus.Fields{"peaks": len(c.Peaks), "invalid": len(warnings), "elapsed": time.Since(start).String()}).Debug("peaks fitted")
	return nil
}

// applyBaseline sets the profile-wide baseline from cfg: none for a linear
// baseline, a rolling minimum of the configured window otherwise. Peaks not
// re-integrated keep the boundary values they were integrated with.
func applyBaseline(c *chrom.Chromatogram, cfg *config.Config) {
	c.Baseline = nil
	if cfg.Integration.Baseline == integration.BaselineRollingMinimum {
		c.Baseline = integration.RollingMinimum(c.Filtered.Values, cfg.Integration.BaselineWindow)
	}
}

func labelPeaks(peaks []chrom.Peak) {
	for i := range peaks {
		if peaks[i].Label == "" {
			peaks[i].Label = fmt.Sprintf("P%d", i+1)
		}
	}
}

func clampWarnings(peaks []chrom.Peak) []string {
	var out []string
	for _, p := range peaks {
		if p.AreaClamped {
			out = append(out, fmt.Sprintf("peak %s: negative area clamped to 0", p.Label))
		}
		if p.HeightClamped {
			out = append(out, fmt.Sprintf("peak %s: negative height clamped to 0", p.Label))
		}
	}
	return out
}
