// Package render draws chromatograms as PNG plots with gonum/plot.
package render
