// Package gpz implements the sparse basis-function Gaussian-process
// regressor used for photometric-redshift estimation. The pipeline in
// internal/photoz only touches it through the photoz.Regressor
// interface; everything in here is model internals.
//
// The model projects (optionally PCA-whitened) features onto a set of
// RBF basis functions centered on training rows, solves a weighted
// ridge system for the basis weights, and fits the lengthscales and
// regularizer by seeded random search with early stopping on the
// validation loss. Method tags select the lengthscale
// parameterization: G* shares lengthscales across basis functions, V*
// learns them per basis; *L uses a single scalar per set, *D and *C a
// value per input dimension.
package gpz

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/photoz/internal/photoz"
)

// Hyperparams configures a GP before training.
type Hyperparams struct {
	NumBasis        int
	Method          string
	JointMean       bool
	Heteroscedastic bool
	Decorrelate     bool
	Seed            int64
}

var validMethods = map[string]bool{
	"GL": true, "VL": true, "GD": true, "VD": true, "GC": true, "VC": true,
}

// proposalStep is the stddev of log-space hyperparameter perturbations
// during random search.
const proposalStep = 0.3

// noiseFloor keeps predicted noise variances away from zero.
const noiseFloor = 1e-12

// GP is a trainable sparse Gaussian-process regressor. It satisfies
// photoz.Regressor. A GP is not safe for concurrent use during Train;
// after training it is read-only and may be shared freely.
type GP struct {
	hp      Hyperparams
	trained bool

	// Preprocessing fitted on training rows.
	mean []float64
	std  []float64
	rot  *mat.Dense // PCA rotation, nil unless Decorrelate

	// Fitted basis model.
	centers *mat.Dense // k x d, in preprocessed space
	ell     []float64  // k x d lengthscales, row-major
	weights *mat.VecDense
	ainv    *mat.SymDense
	sigma2  float64

	// Heteroscedastic noise model over the same basis; nil means a
	// constant sigma2 noise floor.
	noiseWeights *mat.VecDense
}

var _ photoz.Regressor = (*GP)(nil)

// New validates the hyperparameters and returns an untrained GP.
func New(hp Hyperparams) (*GP, error) {
	if hp.NumBasis <= 0 {
		return nil, fmt.Errorf("gpz: basis count must be positive, got %d", hp.NumBasis)
	}
	if !validMethods[hp.Method] {
		return nil, fmt.Errorf("gpz: unknown method %q (want GL, VL, GD, VD, GC, or VC)", hp.Method)
	}
	return &GP{hp: hp}, nil
}

func (g *GP) perBasis() bool { return g.hp.Method[0] == 'V' }
func (g *GP) perDim() bool   { return g.hp.Method[1] == 'D' || g.hp.Method[1] == 'C' }

// Train fits the model. Rows flagged in opts.TrainingMask fit the
// basis weights; rows in opts.ValidationMask drive early stopping.
// Training stops after opts.MaxIter search iterations or
// opts.MaxAttempts consecutive proposals without validation
// improvement, whichever comes first. Deterministic for a fixed seed.
func (g *GP) Train(features *mat.Dense, targets []float64, opts photoz.TrainOptions) error {
	n, d := features.Dims()
	if len(targets) != n {
		return fmt.Errorf("gpz: %d targets for %d rows", len(targets), n)
	}
	if len(opts.TrainingMask) != n || len(opts.ValidationMask) != n {
		return fmt.Errorf("gpz: mask length mismatch (%d/%d masks for %d rows)",
			len(opts.TrainingMask), len(opts.ValidationMask), n)
	}
	weights := opts.Weights
	if weights == nil {
		weights = ones(n)
	}
	if len(weights) != n {
		return fmt.Errorf("gpz: %d weights for %d rows", len(weights), n)
	}
	if opts.MaxIter <= 0 || opts.MaxAttempts <= 0 {
		return fmt.Errorf("gpz: iteration budgets must be positive (maxIter=%d, maxAttempts=%d)",
			opts.MaxIter, opts.MaxAttempts)
	}

	trainIdx := maskIndices(opts.TrainingMask)
	valIdx := maskIndices(opts.ValidationMask)
	if len(trainIdx) == 0 {
		return fmt.Errorf("gpz: training mask selects no rows")
	}
	if len(valIdx) == 0 {
		// Fall back to in-sample loss when no validation rows exist.
		valIdx = trainIdx
	}

	g.fitPreprocessing(features, trainIdx, d)
	xt := g.transform(features)
	// PCA may reduce the column count when there are fewer training
	// rows than dimensions; everything downstream uses the
	// transformed width.
	_, dt := xt.Dims()

	rng := rand.New(rand.NewSource(g.hp.Seed))

	k := g.hp.NumBasis
	if k > len(trainIdx) {
		k = len(trainIdx)
	}
	g.centers = sampleCenters(xt, trainIdx, k, rng)

	xtr, ytr, wtr := selectRows(xt, targets, weights, trainIdx)
	xval, yval, wval := selectRows(xt, targets, weights, valIdx)

	theta := g.initialTheta(k, dt)
	best, err := g.fitTheta(theta, xtr, ytr, wtr, xval, yval, wval, k, dt)
	if err != nil {
		return fmt.Errorf("gpz: initial fit: %w", err)
	}

	attempts := 0
	for iter := 1; iter < opts.MaxIter && attempts < opts.MaxAttempts; iter++ {
		proposal := perturb(best.theta, rng)
		fit, err := g.fitTheta(proposal, xtr, ytr, wtr, xval, yval, wval, k, dt)
		if err != nil {
			// An ill-conditioned proposal just counts as no progress.
			attempts++
			continue
		}
		if fit.loss < best.loss {
			best = fit
			attempts = 0
		} else {
			attempts++
		}
	}

	g.ell = expandLengthscales(best.theta, k, dt, g.perBasis(), g.perDim())
	g.weights = best.weights
	g.ainv = best.ainv
	g.sigma2 = best.sigma2

	if g.hp.Heteroscedastic {
		if err := g.fitNoiseModel(xtr, ytr, wtr, best); err != nil {
			return fmt.Errorf("gpz: noise model: %w", err)
		}
	} else {
		g.noiseWeights = nil
	}

	g.trained = true
	return nil
}

// Predict evaluates the trained model on a feature matrix, returning
// the predictive mean and its model/noise variance decomposition.
func (g *GP) Predict(features *mat.Dense) (*photoz.Prediction, error) {
	if !g.trained {
		return nil, fmt.Errorf("gpz: model is not trained")
	}
	n, d := features.Dims()
	if d != len(g.mean) {
		return nil, fmt.Errorf("gpz: %d feature columns, model trained on %d", d, len(g.mean))
	}

	xt := g.transform(features)
	phi := g.buildPhi(xt, g.ell)
	p := phi.RawMatrix().Cols

	pred := &photoz.Prediction{
		Mu:       make([]float64, n),
		TotalVar: make([]float64, n),
		ModelVar: make([]float64, n),
		NoiseVar: make([]float64, n),
	}

	phiRow := mat.NewVecDense(p, nil)
	tmp := mat.NewVecDense(p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			phiRow.SetVec(j, phi.At(i, j))
		}
		pred.Mu[i] = mat.Dot(phiRow, g.weights)

		tmp.MulVec(g.ainv, phiRow)
		pred.ModelVar[i] = g.sigma2 * mat.Dot(phiRow, tmp)

		if g.noiseWeights != nil {
			pred.NoiseVar[i] = math.Exp(mat.Dot(phiRow, g.noiseWeights))
		} else {
			pred.NoiseVar[i] = g.sigma2
		}
		if pred.NoiseVar[i] < noiseFloor {
			pred.NoiseVar[i] = noiseFloor
		}
		pred.TotalVar[i] = pred.ModelVar[i] + pred.NoiseVar[i]
	}
	return pred, nil
}

// thetaFit bundles one evaluated hyperparameter state.
type thetaFit struct {
	theta   []float64
	weights *mat.VecDense
	ainv    *mat.SymDense
	sigma2  float64
	loss    float64
}

// initialTheta packs log-lengthscales (layout per method tag) followed
// by the log regularizer.
func (g *GP) initialTheta(k, d int) []float64 {
	n := 1
	if g.perBasis() {
		n = k
	}
	if g.perDim() {
		n *= d
	}
	theta := make([]float64, n+1)
	theta[n] = math.Log(1e-2)
	return theta
}

func perturb(theta []float64, rng *rand.Rand) []float64 {
	out := make([]float64, len(theta))
	for i, v := range theta {
		out[i] = v + rng.NormFloat64()*proposalStep
	}
	return out
}

// expandLengthscales turns the packed theta into a k x d row-major
// lengthscale table.
func expandLengthscales(theta []float64, k, d int, perBasis, perDim bool) []float64 {
	ell := make([]float64, k*d)
	for b := 0; b < k; b++ {
		for dim := 0; dim < d; dim++ {
			idx := 0
			if perBasis && perDim {
				idx = b*d + dim
			} else if perBasis {
				idx = b
			} else if perDim {
				idx = dim
			}
			ell[b*d+dim] = math.Exp(theta[idx])
		}
	}
	return ell
}

// fitTheta solves the ridge system for one hyperparameter state and
// scores it on the validation rows (weighted mean squared error).
func (g *GP) fitTheta(theta []float64, xtr *mat.Dense, ytr, wtr []float64,
	xval *mat.Dense, yval, wval []float64, k, d int) (thetaFit, error) {

	ell := expandLengthscales(theta, k, d, g.perBasis(), g.perDim())
	lambda := math.Exp(theta[len(theta)-1])

	phiTr := g.buildPhi(xtr, ell)
	w, ainv, err := solveRidge(phiTr, ytr, wtr, lambda)
	if err != nil {
		return thetaFit{}, err
	}

	sigma2 := weightedResidualVar(phiTr, ytr, wtr, w)

	phiVal := g.buildPhi(xval, ell)
	loss := weightedResidualVar(phiVal, yval, wval, w)

	return thetaFit{
		theta:   append([]float64(nil), theta...),
		weights: w,
		ainv:    ainv,
		sigma2:  sigma2,
		loss:    loss,
	}, nil
}

// fitNoiseModel fits log squared residuals on the training rows with a
// second ridge solve over the same basis.
func (g *GP) fitNoiseModel(xtr *mat.Dense, ytr, wtr []float64, best thetaFit) error {
	phi := g.buildPhi(xtr, g.ell)
	n := len(ytr)
	logRes := make([]float64, n)
	for i := 0; i < n; i++ {
		var mu float64
		for j := 0; j < best.weights.Len(); j++ {
			mu += phi.At(i, j) * best.weights.AtVec(j)
		}
		r := ytr[i] - mu
		logRes[i] = math.Log(r*r + 1e-6)
	}
	w, _, err := solveRidge(phi, logRes, wtr, 1e-2)
	if err != nil {
		return err
	}
	g.noiseWeights = w
	return nil
}

// buildPhi evaluates the RBF basis for every row of x. With JointMean
// set, the design is augmented with the raw inputs and a bias column
// so a linear prior mean is learned jointly with the basis weights.
func (g *GP) buildPhi(x *mat.Dense, ell []float64) *mat.Dense {
	n, d := x.Dims()
	k, _ := g.centers.Dims()
	p := k
	if g.hp.JointMean {
		p += d + 1
	}
	phi := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for b := 0; b < k; b++ {
			var d2 float64
			for dim := 0; dim < d; dim++ {
				diff := (x.At(i, dim) - g.centers.At(b, dim)) / ell[b*d+dim]
				d2 += diff * diff
			}
			phi.Set(i, b, math.Exp(-0.5*d2))
		}
		if g.hp.JointMean {
			for dim := 0; dim < d; dim++ {
				phi.Set(i, k+dim, x.At(i, dim))
			}
			phi.Set(i, k+d, 1)
		}
	}
	return phi
}

// solveRidge solves (Phi' W Phi + lambda I) w = Phi' W y and returns
// the weights and the inverse of the regularized normal matrix. The
// regularizer is inflated and the solve retried a few times before an
// ill-conditioned system is reported.
func solveRidge(phi *mat.Dense, y, w []float64, lambda float64) (*mat.VecDense, *mat.SymDense, error) {
	n, p := phi.Dims()

	wphi := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			wphi.Set(i, j, w[i]*phi.At(i, j))
		}
	}

	var a mat.Dense
	a.Mul(phi.T(), wphi)

	yv := mat.NewVecDense(n, y)
	var b mat.VecDense
	b.MulVec(wphi.T(), yv)

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, a.At(i, j))
		}
	}

	var chol mat.Cholesky
	for attempt := 0; attempt < 4; attempt++ {
		reg := mat.NewSymDense(p, nil)
		reg.CopySym(sym)
		for i := 0; i < p; i++ {
			reg.SetSym(i, i, reg.At(i, i)+lambda)
		}
		if chol.Factorize(reg) {
			var wv mat.VecDense
			if err := chol.SolveVecTo(&wv, &b); err != nil {
				return nil, nil, fmt.Errorf("ridge solve: %w", err)
			}
			var inv mat.SymDense
			if err := chol.InverseTo(&inv); err != nil {
				return nil, nil, fmt.Errorf("ridge inverse: %w", err)
			}
			return &wv, &inv, nil
		}
		lambda *= 100
	}
	return nil, nil, fmt.Errorf("ridge solve: normal matrix is not positive definite")
}

// weightedResidualVar computes sum w (y - Phi w)^2 / sum w.
func weightedResidualVar(phi *mat.Dense, y, w []float64, coef *mat.VecDense) float64 {
	n, p := phi.Dims()
	var num, den float64
	for i := 0; i < n; i++ {
		var mu float64
		for j := 0; j < p; j++ {
			mu += phi.At(i, j) * coef.AtVec(j)
		}
		r := y[i] - mu
		num += w[i] * r * r
		den += w[i]
	}
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}

// fitPreprocessing computes per-dimension standardization from the
// training rows and, when decorrelation is enabled, the PCA rotation
// of the standardized training matrix.
func (g *GP) fitPreprocessing(features *mat.Dense, trainIdx []int, d int) {
	g.mean = make([]float64, d)
	g.std = make([]float64, d)
	ntr := float64(len(trainIdx))
	for dim := 0; dim < d; dim++ {
		var sum float64
		for _, i := range trainIdx {
			sum += features.At(i, dim)
		}
		g.mean[dim] = sum / ntr
		var ss float64
		for _, i := range trainIdx {
			diff := features.At(i, dim) - g.mean[dim]
			ss += diff * diff
		}
		g.std[dim] = math.Sqrt(ss / ntr)
		if g.std[dim] == 0 || math.IsNaN(g.std[dim]) {
			g.std[dim] = 1
		}
	}

	g.rot = nil
	if !g.hp.Decorrelate {
		return
	}
	std := mat.NewDense(len(trainIdx), d, nil)
	for r, i := range trainIdx {
		for dim := 0; dim < d; dim++ {
			std.Set(r, dim, (features.At(i, dim)-g.mean[dim])/g.std[dim])
		}
	}
	var svd mat.SVD
	if !svd.Factorize(std, mat.SVDThin) {
		// Leave features standardized only; decorrelation is a
		// preprocessing refinement, not a correctness requirement.
		return
	}
	var v mat.Dense
	svd.VTo(&v)
	g.rot = &v
}

// transform applies the fitted preprocessing to every row.
func (g *GP) transform(features *mat.Dense) *mat.Dense {
	n, d := features.Dims()
	out := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for dim := 0; dim < d; dim++ {
			out.Set(i, dim, (features.At(i, dim)-g.mean[dim])/g.std[dim])
		}
	}
	if g.rot == nil {
		return out
	}
	var rotated mat.Dense
	rotated.Mul(out, g.rot)
	return &rotated
}

func sampleCenters(x *mat.Dense, trainIdx []int, k int, rng *rand.Rand) *mat.Dense {
	_, d := x.Dims()
	perm := rng.Perm(len(trainIdx))
	centers := mat.NewDense(k, d, nil)
	for b := 0; b < k; b++ {
		src := trainIdx[perm[b]]
		for dim := 0; dim < d; dim++ {
			centers.Set(b, dim, x.At(src, dim))
		}
	}
	return centers
}

func selectRows(x *mat.Dense, y, w []float64, idx []int) (*mat.Dense, []float64, []float64) {
	_, d := x.Dims()
	xs := mat.NewDense(len(idx), d, nil)
	ys := make([]float64, len(idx))
	ws := make([]float64, len(idx))
	for r, i := range idx {
		for dim := 0; dim < d; dim++ {
			xs.Set(r, dim, x.At(i, dim))
		}
		ys[r] = y[i]
		ws[r] = w[i]
	}
	return xs, ys, ws
}

func maskIndices(mask []bool) []int {
	var idx []int
	for i, m := range mask {
		if m {
			idx = append(idx, i)
		}
	}
	return idx
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
