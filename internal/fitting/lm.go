package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// problem is a bounded least-squares problem over samples (xs, ys).
type problem struct {
	xs, ys       []float64
	model        Model
	lower, upper []float64
}

type solution struct {
	params     []float64
	rss        float64
	iterations int
	converged  bool
}

func (pr *problem) residuals(p, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(pr.xs))
	}
	for k, x := range pr.xs {
		dst[k] = sum(pr.model, x, p) - pr.ys[k]
	}
	return dst
}

// jacobian fills jac with central differences of the model.
func (pr *problem) jacobian(p []float64, jac *mat.Dense) {
	probe := make([]float64, len(p))
	copy(probe, p)
	for j := range p {
		h := 1e-6 * math.Max(math.Abs(p[j]), 1)
		probe[j] = p[j] + h
		for k, x := range pr.xs {
			jac.Set(k, j, sum(pr.model, x, probe))
		}
		probe[j] = p[j] - h
		for k, x := range pr.xs {
			jac.Set(k, j, (jac.At(k, j)-sum(pr.model, x, probe))/(2*h))
		}
		probe[j] = p[j]
	}
}

// levenbergMarquardt minimises the residual sum of squares starting at x0.
// Every trial point is clamped into [lower, upper]. It stops when an accepted
// step improves the cost by less than tolerance (relative), when the gradient
// vanishes, or when damping grows without finding a descent; all three count
// as converged. Running out of iterations does not.
func levenbergMarquardt(pr *problem, x0 []float64, tolerance float64, maxIter int) solution {
	n, m := len(x0), len(pr.xs)

	x := make([]float64, n)
	for j := range x {
		x[j] = clamp(x0[j], pr.lower[j], pr.upper[j])
	}
	fi := pr.residuals(x, nil)
	cost := sumOfSquares(fi)

	jac := mat.NewDense(m, n, nil)
	pr.jacobian(x, jac)

	lambda := 1e-3
	nu := 2.0

	var (
		jtj  mat.SymDense
		grad mat.VecDense
		chol mat.Cholesky
		dx   mat.VecDense
	)
	damped := mat.NewSymDense(n, nil)
	rhs := mat.NewVecDense(n, nil)
	xNew := make([]float64, n)
	fiNew := make([]float64, m)

	sol := solution{params: x}
	for iter := 0; iter < maxIter; iter++ {
		sol.iterations = iter + 1
		if cost == 0 {
			sol.converged = true
			break
		}

		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(m, fi))
		if mat.Norm(&grad, 2) < tolerance*cost {
			sol.converged = true
			break
		}

		maxDiag := 0.0
		for i := 0; i < n; i++ {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		floor := math.Max(1e-12*maxDiag, math.SmallestNonzeroFloat64)

		accepted := false
		for tries := 0; tries < 20 && !accepted; tries++ {
			damped.CopySym(&jtj)
			for i := 0; i < n; i++ {
				damped.SetSym(i, i, jtj.At(i, i)+lambda*math.Max(jtj.At(i, i), floor))
			}
			rhs.ScaleVec(-1, &grad)

			if !chol.Factorize(damped) {
				lambda *= nu
				continue
			}
			if err := chol.SolveVecTo(&dx, rhs); err != nil {
				lambda *= nu
				continue
			}

			for j := 0; j < n; j++ {
				xNew[j] = clamp(x[j]+dx.AtVec(j), pr.lower[j], pr.upper[j])
			}
			pr.residuals(xNew, fiNew)
			costNew := sumOfSquares(fiNew)

			if costNew < cost {
				improvement := (cost - costNew) / cost
				copy(x, xNew)
				copy(fi, fiNew)
				cost = costNew
				lambda = math.Max(lambda/3.0, 1e-15)
				nu = 2.0
				pr.jacobian(x, jac)
				accepted = true

				if improvement < tolerance {
					sol.converged = true
					sol.rss = cost
					return sol
				}
			} else {
				lambda *= nu
				nu *= 2.0
				if lambda > 1e16 {
					sol.converged = true
					sol.rss = cost
					return sol
				}
			}
		}
	}
	sol.rss = cost
	return sol
}

func sumOfSquares(fi []float64) float64 {
	s := 0.0
	for _, v := range fi {
		s += v * v
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
