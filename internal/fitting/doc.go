// Package fitting refines integrated peaks with an asymmetric peak model.
//
// The Mecozzi model is fitted by a bounded Levenberg–Marquardt solver over
// the peak window. Amplitude starts at the apex height, the center at the apex
// position, the width at the half width measured from the data, and the
// asymmetry at zero. Every parameter is held inside a physical range: positive
// amplitude up to twice the apex, a center within the window, a width between
// half a sample and the window span, and |asymmetry| <= 1.9.
//
// A fit that runs out of iterations, finishes on a bound, or falls below the
// configured R² is returned invalid with zero parameters. Its residual and
// iteration count stay for diagnostics.
//
// Peaks whose windows touch can be fitted jointly with FitGroup, modelling
// the window as the sum of one component per peak.
package fitting
