// Package errors defines the failure taxonomy shared by every pipeline stage.
//
// Each stage returns an *AppError whose Type tells the caller how far the failure
// reaches. All types except ErrorTypeFitNonConvergence abort the stage for the
// affected input; a fit failure is scoped to a single peak.
//
// The package is named errors to keep call sites short; import it with an alias
// when the standard library package is also needed:
//
//	import apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
package errors
