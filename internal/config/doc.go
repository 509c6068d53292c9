// Package config loads, saves and validates the YAML pipeline configuration.
//
// Sections mirror the pipeline stages:
//
//	extraction:    reduction, channel, medianRadius, bounds, aggregate, samplesPerPixel, invert
//	filters:       ordered list of {kind: savgol, window, order} or {kind: gaussian, sigma}
//	detection:     minHeight, relativeHeight, minDistance, sensitivity, relativeProminence, minWidth
//	integration:   mode, baseline, baselineWindow, valleyTolerance
//	fitting:       enabled, model, jointFit, maxIterations, tolerance, subtractBaseline, minRSquared
//	normalization: basis, referenceLabel, referencePosition, referenceTolerance, align, referenceIndex
//	workers:       concurrent lanes and fits, 0 for one per CPU
package config
