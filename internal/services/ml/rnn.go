package ml

import (
	"math"
	"math/rand"
)

// rnnCell is a single-layer Elman recurrence: h_t = tanh(Wx*x_t + Wh*h_{t-1} + b).
type rnnCell struct {
	inputDim  int
	hiddenDim int
	wx        [][]float64
	wh        [][]float64
	b         []float64
}

func newRNNCell(rng *rand.Rand, inputDim, hiddenDim int) *rnnCell {
	return &rnnCell{
		inputDim:  inputDim,
		hiddenDim: hiddenDim,
		wx:        xavierMatrix(rng, hiddenDim, inputDim),
		wh:        xavierMatrix(rng, hiddenDim, hiddenDim),
		b:         make([]float64, hiddenDim),
	}
}

// forward runs the recurrence over a sequence and returns the hidden state
// after every step. h_0 is the zero vector.
func (c *rnnCell) forward(seq [][]float64) [][]float64 {
	states := make([][]float64, len(seq))
	h := make([]float64, c.hiddenDim)
	for t, x := range seq {
		z := matVec(c.wx, x)
		addVec(z, matVec(c.wh, h))
		addVec(z, c.b)
		h = tanhVec(z)
		states[t] = h
	}
	return states
}

// cellGrads accumulates parameter gradients across a batch.
type cellGrads struct {
	wx [][]float64
	wh [][]float64
	b  []float64
}

func newCellGrads(c *rnnCell) *cellGrads {
	return &cellGrads{
		wx: newMatrix(c.hiddenDim, c.inputDim),
		wh: newMatrix(c.hiddenDim, c.hiddenDim),
		b:  make([]float64, c.hiddenDim),
	}
}

// backward runs truncated-free BPTT over the whole window. dStates[t] is the
// gradient flowing into h_t from layers above (nil entries allowed). Returns
// the gradient with respect to each input step.
func (c *rnnCell) backward(seq, states [][]float64, dStates [][]float64, g *cellGrads) [][]float64 {
	dInputs := make([][]float64, len(seq))
	dh := make([]float64, c.hiddenDim)
	for t := len(seq) - 1; t >= 0; t-- {
		if dStates[t] != nil {
			addVec(dh, dStates[t])
		}
		// through tanh
		dz := make([]float64, c.hiddenDim)
		for i, h := range states[t] {
			dz[i] = dh[i] * (1 - h*h)
		}
		var hPrev []float64
		if t > 0 {
			hPrev = states[t-1]
		} else {
			hPrev = make([]float64, c.hiddenDim)
		}
		addOuter(g.wx, dz, seq[t])
		addOuter(g.wh, dz, hPrev)
		addVec(g.b, dz)
		dInputs[t] = matVecT(c.wx, dz)
		dh = matVecT(c.wh, dz)
	}
	return dInputs
}

// dense is a fully connected layer with optional ReLU.
type dense struct {
	w    [][]float64
	b    []float64
	relu bool
}

func newDense(rng *rand.Rand, in, out int, relu bool) *dense {
	return &dense{w: xavierMatrix(rng, out, in), b: make([]float64, out), relu: relu}
}

func (d *dense) forward(x []float64) (pre, act []float64) {
	pre = matVec(d.w, x)
	addVec(pre, d.b)
	if d.relu {
		return pre, reluVec(pre)
	}
	return pre, pre
}

type denseGrads struct {
	w [][]float64
	b []float64
}

func newDenseGrads(d *dense) *denseGrads {
	return &denseGrads{w: newMatrix(len(d.w), len(d.w[0])), b: make([]float64, len(d.b))}
}

// backward accumulates gradients and returns dL/dx. dOut is the gradient at
// the layer output (post-activation).
func (d *dense) backward(x, pre []float64, dOut []float64, g *denseGrads) []float64 {
	dz := make([]float64, len(dOut))
	copy(dz, dOut)
	if d.relu {
		for i, p := range pre {
			if p <= 0 {
				dz[i] = 0
			}
		}
	}
	addOuter(g.w, dz, x)
	addVec(g.b, dz)
	return matVecT(d.w, dz)
}

// adam is a per-model Adam optimizer keyed by parameter name.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	step  int
	mMat  map[string][][]float64
	vMat  map[string][][]float64
	mVec  map[string][]float64
	vVec  map[string][]float64
}

func newAdam(lr float64) *adam {
	return &adam{
		lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8,
		mMat: map[string][][]float64{}, vMat: map[string][][]float64{},
		mVec: map[string][]float64{}, vVec: map[string][]float64{},
	}
}

func (a *adam) tick() { a.step++ }

func (a *adam) bias() (float64, float64) {
	b1 := 1 - math.Pow(a.beta1, float64(a.step))
	b2 := 1 - math.Pow(a.beta2, float64(a.step))
	return b1, b2
}

func (a *adam) updateMat(name string, w, grad [][]float64) {
	m, ok := a.mMat[name]
	if !ok {
		m = newMatrix(len(w), len(w[0]))
		a.mMat[name] = m
	}
	v, ok := a.vMat[name]
	if !ok {
		v = newMatrix(len(w), len(w[0]))
		a.vMat[name] = v
	}
	b1, b2 := a.bias()
	for i := range w {
		for j := range w[i] {
			g := grad[i][j]
			m[i][j] = a.beta1*m[i][j] + (1-a.beta1)*g
			v[i][j] = a.beta2*v[i][j] + (1-a.beta2)*g*g
			mHat := m[i][j] / b1
			vHat := v[i][j] / b2
			w[i][j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

func (a *adam) updateVec(name string, w, grad []float64) {
	m, ok := a.mVec[name]
	if !ok {
		m = make([]float64, len(w))
		a.mVec[name] = m
	}
	v, ok := a.vVec[name]
	if !ok {
		v = make([]float64, len(w))
		a.vVec[name] = v
	}
	b1, b2 := a.bias()
	for i := range w {
		g := grad[i]
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		mHat := m[i] / b1
		vHat := v[i] / b2
		w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
	}
}

// dropoutMask returns an inverted-dropout mask, or nil when rate <= 0.
func dropoutMask(rng *rand.Rand, n int, rate float64) []float64 {
	if rate <= 0 {
		return nil
	}
	mask := make([]float64, n)
	keep := 1 - rate
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(v, mask []float64) []float64 {
	if mask == nil {
		return v
	}
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * mask[i]
	}
	return out
}
