package ml

import (
	"math"
	"math/rand"
)

// MinSequences is the floor below which training refuses to run.
const MinSequences = 10

const gradClipNorm = 5.0

// RegressorConfig configures the recurrent forecasting models.
type RegressorConfig struct {
	InputDim   int     `json:"input_dim"`
	Units      int     `json:"units"`
	DenseUnits int     `json:"dense_units"`
	Horizon    int     `json:"horizon"`
	Dropout    float64 `json:"dropout"`
	LR         float64 `json:"lr"`
	Seed       int64   `json:"seed"`
}

func (c *RegressorConfig) defaults() {
	if c.Units <= 0 {
		c.Units = 64
	}
	if c.DenseUnits <= 0 {
		c.DenseUnits = 32
	}
	if c.Horizon <= 0 {
		c.Horizon = 30
	}
	if c.LR <= 0 {
		c.LR = 0.001
	}
}

// Regressor maps a feature window to horizon point forecasts of the target.
// Elman encoder, ReLU trunk, linear head; trained on MSE.
type Regressor struct {
	cfg     RegressorConfig
	cell    *rnnCell
	trunk   *dense
	head    *dense
	rng     *rand.Rand
	trained bool
}

func NewRegressor(cfg RegressorConfig) *Regressor {
	cfg.defaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Regressor{
		cfg:   cfg,
		cell:  newRNNCell(rng, cfg.InputDim, cfg.Units),
		trunk: newDense(rng, cfg.Units, cfg.DenseUnits, true),
		head:  newDense(rng, cfg.DenseUnits, cfg.Horizon, false),
		rng:   rng,
	}
}

// Train runs stochastic Adam over the sequences and returns the per-epoch
// mean MSE curve.
func (r *Regressor) Train(x [][][]float64, y [][]float64, epochs int) ([]float64, error) {
	if len(x) < MinSequences {
		return nil, &InsufficientDataError{Needed: MinSequences, Got: len(x)}
	}
	opt := newAdam(r.cfg.LR)
	curve := make([]float64, 0, epochs)
	order := r.rng.Perm(len(x))

	for epoch := 0; epoch < epochs; epoch++ {
		r.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for _, idx := range order {
			total += r.trainStep(x[idx], y[idx], opt)
		}
		curve = append(curve, total/float64(len(x)))
	}
	r.trained = true
	return curve, nil
}

func (r *Regressor) trainStep(seq [][]float64, target []float64, opt *adam) float64 {
	states := r.cell.forward(seq)
	last := states[len(states)-1]
	mask := dropoutMask(r.rng, len(last), r.cfg.Dropout)
	dropped := applyMask(last, mask)
	trunkPre, trunkOut := r.trunk.forward(dropped)
	_, out := r.head.forward(trunkOut)

	// MSE and its gradient
	loss := 0.0
	dOut := make([]float64, len(out))
	n := float64(len(out))
	for i := range out {
		err := out[i] - target[i]
		loss += err * err / n
		dOut[i] = 2 * err / n
	}

	cg := newCellGrads(r.cell)
	tg := newDenseGrads(r.trunk)
	hg := newDenseGrads(r.head)

	dTrunkOut := r.head.backward(trunkOut, out, dOut, hg)
	dDropped := r.trunk.backward(dropped, trunkPre, dTrunkOut, tg)
	dLast := applyMask(dDropped, mask)
	dStates := make([][]float64, len(seq))
	dStates[len(seq)-1] = dLast
	r.cell.backward(seq, states, dStates, cg)

	clipGrad(gradClipNorm,
		[][][]float64{cg.wx, cg.wh, tg.w, hg.w},
		[][]float64{cg.b, tg.b, hg.b})

	opt.tick()
	opt.updateMat("cell.wx", r.cell.wx, cg.wx)
	opt.updateMat("cell.wh", r.cell.wh, cg.wh)
	opt.updateVec("cell.b", r.cell.b, cg.b)
	opt.updateMat("trunk.w", r.trunk.w, tg.w)
	opt.updateVec("trunk.b", r.trunk.b, tg.b)
	opt.updateMat("head.w", r.head.w, hg.w)
	opt.updateVec("head.b", r.head.b, hg.b)
	return loss
}

// Predict returns horizon scaled target values for one feature window.
func (r *Regressor) Predict(window [][]float64) ([]float64, error) {
	if !r.trained {
		return nil, &NotTrainedError{Model: "forecasting model"}
	}
	states := r.cell.forward(window)
	_, trunkOut := r.trunk.forward(states[len(states)-1])
	_, out := r.head.forward(trunkOut)
	return out, nil
}

// UncertaintyRegressor shares the Regressor encoder but adds a variance head
// trained with Gaussian negative log-likelihood.
type UncertaintyRegressor struct {
	cfg     RegressorConfig
	cell    *rnnCell
	trunk   *dense
	mean    *dense
	rawVar  *dense
	rng     *rand.Rand
	trained bool
}

const varEps = 1e-6

func NewUncertaintyRegressor(cfg RegressorConfig) *UncertaintyRegressor {
	cfg.defaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &UncertaintyRegressor{
		cfg:    cfg,
		cell:   newRNNCell(rng, cfg.InputDim, cfg.Units),
		trunk:  newDense(rng, cfg.Units, cfg.DenseUnits, true),
		mean:   newDense(rng, cfg.DenseUnits, cfg.Horizon, false),
		rawVar: newDense(rng, cfg.DenseUnits, cfg.Horizon, false),
		rng:    rng,
	}
}

// Train minimizes 0.5*log(var) + 0.5*sqErr/var per horizon step.
func (u *UncertaintyRegressor) Train(x [][][]float64, y [][]float64, epochs int) ([]float64, error) {
	if len(x) < MinSequences {
		return nil, &InsufficientDataError{Needed: MinSequences, Got: len(x)}
	}
	opt := newAdam(u.cfg.LR)
	curve := make([]float64, 0, epochs)
	order := u.rng.Perm(len(x))

	for epoch := 0; epoch < epochs; epoch++ {
		u.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for _, idx := range order {
			total += u.trainStep(x[idx], y[idx], opt)
		}
		curve = append(curve, total/float64(len(x)))
	}
	u.trained = true
	return curve, nil
}

func (u *UncertaintyRegressor) trainStep(seq [][]float64, target []float64, opt *adam) float64 {
	states := u.cell.forward(seq)
	last := states[len(states)-1]
	mask := dropoutMask(u.rng, len(last), u.cfg.Dropout)
	dropped := applyMask(last, mask)
	trunkPre, trunkOut := u.trunk.forward(dropped)
	_, mu := u.mean.forward(trunkOut)
	_, raw := u.rawVar.forward(trunkOut)

	n := float64(len(mu))
	loss := 0.0
	dMu := make([]float64, len(mu))
	dRaw := make([]float64, len(raw))
	for i := range mu {
		v := softplus(raw[i]) + varEps
		err := mu[i] - target[i]
		loss += (0.5*math.Log(v) + 0.5*err*err/v) / n
		dMu[i] = err / v / n
		dV := (0.5/v - 0.5*err*err/(v*v)) / n
		dRaw[i] = dV * sigmoid(raw[i])
	}

	cg := newCellGrads(u.cell)
	tg := newDenseGrads(u.trunk)
	mg := newDenseGrads(u.mean)
	vg := newDenseGrads(u.rawVar)

	dTrunkOut := u.mean.backward(trunkOut, mu, dMu, mg)
	addVec(dTrunkOut, u.rawVar.backward(trunkOut, raw, dRaw, vg))
	dDropped := u.trunk.backward(dropped, trunkPre, dTrunkOut, tg)
	dLast := applyMask(dDropped, mask)
	dStates := make([][]float64, len(seq))
	dStates[len(seq)-1] = dLast
	u.cell.backward(seq, states, dStates, cg)

	clipGrad(gradClipNorm,
		[][][]float64{cg.wx, cg.wh, tg.w, mg.w, vg.w},
		[][]float64{cg.b, tg.b, mg.b, vg.b})

	opt.tick()
	opt.updateMat("cell.wx", u.cell.wx, cg.wx)
	opt.updateMat("cell.wh", u.cell.wh, cg.wh)
	opt.updateVec("cell.b", u.cell.b, cg.b)
	opt.updateMat("trunk.w", u.trunk.w, tg.w)
	opt.updateVec("trunk.b", u.trunk.b, tg.b)
	opt.updateMat("mean.w", u.mean.w, mg.w)
	opt.updateVec("mean.b", u.mean.b, mg.b)
	opt.updateMat("var.w", u.rawVar.w, vg.w)
	opt.updateVec("var.b", u.rawVar.b, vg.b)
	return loss
}

// Predict returns per-step means and variances in scaled units.
func (u *UncertaintyRegressor) Predict(window [][]float64) (mean, variance []float64, err error) {
	if !u.trained {
		return nil, nil, &NotTrainedError{Model: "forecasting model"}
	}
	states := u.cell.forward(window)
	_, trunkOut := u.trunk.forward(states[len(states)-1])
	_, mu := u.mean.forward(trunkOut)
	_, raw := u.rawVar.forward(trunkOut)
	variance = make([]float64, len(raw))
	for i, r := range raw {
		variance[i] = softplus(r) + varEps
	}
	return mu, variance, nil
}
