package ml

import "math/rand"

// AutoencoderConfig configures the sequence reconstruction model.
type AutoencoderConfig struct {
	InputDim   int     `json:"input_dim"`
	Units      int     `json:"units"`
	Bottleneck int     `json:"bottleneck"`
	SeqLen     int     `json:"seq_len"`
	Dropout    float64 `json:"dropout"`
	LR         float64 `json:"lr"`
	Seed       int64   `json:"seed"`
}

func (c *AutoencoderConfig) defaults() {
	if c.Units <= 0 {
		c.Units = 64
	}
	if c.Bottleneck <= 0 {
		c.Bottleneck = 32
	}
	if c.LR <= 0 {
		c.LR = 0.001
	}
}

// Autoencoder compresses a feature window through a dense bottleneck and
// reconstructs it step by step. Encoder RNN -> bottleneck -> repeated-vector
// decoder RNN -> per-step output projection. Reconstruction error is the mean
// squared difference over all steps and features.
type Autoencoder struct {
	cfg     AutoencoderConfig
	encoder *rnnCell
	code    *dense
	decoder *rnnCell
	output  *dense
	rng     *rand.Rand
	trained bool
}

func NewAutoencoder(cfg AutoencoderConfig) *Autoencoder {
	cfg.defaults()
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Autoencoder{
		cfg:     cfg,
		encoder: newRNNCell(rng, cfg.InputDim, cfg.Units),
		code:    newDense(rng, cfg.Units, cfg.Bottleneck, true),
		decoder: newRNNCell(rng, cfg.Bottleneck, cfg.Units),
		output:  newDense(rng, cfg.Units, cfg.InputDim, false),
		rng:     rng,
	}
}

// Train minimizes reconstruction MSE and returns the loss curve.
func (a *Autoencoder) Train(windows [][][]float64, epochs int) ([]float64, error) {
	if len(windows) < MinSequences {
		return nil, &InsufficientDataError{Needed: MinSequences, Got: len(windows)}
	}
	opt := newAdam(a.cfg.LR)
	curve := make([]float64, 0, epochs)
	order := a.rng.Perm(len(windows))

	for epoch := 0; epoch < epochs; epoch++ {
		a.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		total := 0.0
		for _, idx := range order {
			total += a.trainStep(windows[idx], opt)
		}
		curve = append(curve, total/float64(len(windows)))
	}
	a.trained = true
	return curve, nil
}

// reconstruct runs the full forward pass, returning every intermediate needed
// for backprop.
func (a *Autoencoder) reconstruct(window [][]float64) (encStates [][]float64, codePre, codeOut []float64, decInputs, decStates [][]float64, outPres, outs [][]float64) {
	encStates = a.encoder.forward(window)
	codePre, codeOut = a.code.forward(encStates[len(encStates)-1])

	decInputs = make([][]float64, len(window))
	for t := range decInputs {
		decInputs[t] = codeOut
	}
	decStates = a.decoder.forward(decInputs)

	outPres = make([][]float64, len(window))
	outs = make([][]float64, len(window))
	for t, h := range decStates {
		outPres[t], outs[t] = a.output.forward(h)
	}
	return
}

func (a *Autoencoder) trainStep(window [][]float64, opt *adam) float64 {
	encStates, codePre, codeOut, decInputs, decStates, outPres, outs := a.reconstruct(window)

	steps := len(window)
	feats := len(window[0])
	n := float64(steps * feats)

	loss := 0.0
	dOuts := make([][]float64, steps)
	for t := range outs {
		d := make([]float64, feats)
		for j := range outs[t] {
			err := outs[t][j] - window[t][j]
			loss += err * err / n
			d[j] = 2 * err / n
		}
		dOuts[t] = d
	}

	eg := newCellGrads(a.encoder)
	cgr := newDenseGrads(a.code)
	dg := newCellGrads(a.decoder)
	og := newDenseGrads(a.output)

	// through per-step output projection into decoder states
	dDecStates := make([][]float64, steps)
	for t := range dOuts {
		dDecStates[t] = a.output.backward(decStates[t], outPres[t], dOuts[t], og)
	}

	// through decoder; each step's input is the shared code vector
	dDecInputs := a.decoder.backward(decInputs, decStates, dDecStates, dg)
	dCode := make([]float64, len(codeOut))
	for _, d := range dDecInputs {
		addVec(dCode, d)
	}

	// through bottleneck into the encoder's final state
	dEncLast := a.code.backward(encStates[len(encStates)-1], codePre, dCode, cgr)
	dEncStates := make([][]float64, steps)
	dEncStates[steps-1] = dEncLast
	a.encoder.backward(window, encStates, dEncStates, eg)

	clipGrad(gradClipNorm,
		[][][]float64{eg.wx, eg.wh, cgr.w, dg.wx, dg.wh, og.w},
		[][]float64{eg.b, cgr.b, dg.b, og.b})

	opt.tick()
	opt.updateMat("enc.wx", a.encoder.wx, eg.wx)
	opt.updateMat("enc.wh", a.encoder.wh, eg.wh)
	opt.updateVec("enc.b", a.encoder.b, eg.b)
	opt.updateMat("code.w", a.code.w, cgr.w)
	opt.updateVec("code.b", a.code.b, cgr.b)
	opt.updateMat("dec.wx", a.decoder.wx, dg.wx)
	opt.updateMat("dec.wh", a.decoder.wh, dg.wh)
	opt.updateVec("dec.b", a.decoder.b, dg.b)
	opt.updateMat("out.w", a.output.w, og.w)
	opt.updateVec("out.b", a.output.b, og.b)
	return loss
}

// ReconstructionError scores one window. Lower is more normal.
func (a *Autoencoder) ReconstructionError(window [][]float64) (float64, error) {
	if !a.trained {
		return 0, &NotTrainedError{Model: "reconstruction model"}
	}
	_, _, _, _, _, _, outs := a.reconstruct(window)
	n := float64(len(window) * len(window[0]))
	sum := 0.0
	for t := range outs {
		for j := range outs[t] {
			err := outs[t][j] - window[t][j]
			sum += err * err
		}
	}
	return sum / n, nil
}

// ReconstructionErrors scores a batch of windows.
func (a *Autoencoder) ReconstructionErrors(windows [][][]float64) ([]float64, error) {
	out := make([]float64, len(windows))
	for i, w := range windows {
		e, err := a.ReconstructionError(w)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
