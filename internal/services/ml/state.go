package ml

import "math/rand"

// Serializable snapshots of trained models. The orchestration layers embed
// these in their JSON artifacts.

type CellState struct {
	Wx [][]float64 `json:"wx"`
	Wh [][]float64 `json:"wh"`
	B  []float64   `json:"b"`
}

type DenseState struct {
	W    [][]float64 `json:"w"`
	B    []float64   `json:"b"`
	Relu bool        `json:"relu"`
}

func (c *rnnCell) state() CellState {
	return CellState{Wx: c.wx, Wh: c.wh, B: c.b}
}

func cellFromState(s CellState, inputDim, hiddenDim int) *rnnCell {
	return &rnnCell{inputDim: inputDim, hiddenDim: hiddenDim, wx: s.Wx, wh: s.Wh, b: s.B}
}

func (d *dense) state() DenseState {
	return DenseState{W: d.w, B: d.b, Relu: d.relu}
}

func denseFromState(s DenseState) *dense {
	return &dense{w: s.W, b: s.B, relu: s.Relu}
}

type RegressorState struct {
	Config  RegressorConfig `json:"config"`
	Cell    CellState       `json:"cell"`
	Trunk   DenseState      `json:"trunk"`
	Head    DenseState      `json:"head"`
	Trained bool            `json:"trained"`
}

func (r *Regressor) State() RegressorState {
	return RegressorState{
		Config:  r.cfg,
		Cell:    r.cell.state(),
		Trunk:   r.trunk.state(),
		Head:    r.head.state(),
		Trained: r.trained,
	}
}

func RegressorFromState(s RegressorState) *Regressor {
	s.Config.defaults()
	return &Regressor{
		cfg:     s.Config,
		cell:    cellFromState(s.Cell, s.Config.InputDim, s.Config.Units),
		trunk:   denseFromState(s.Trunk),
		head:    denseFromState(s.Head),
		rng:     rand.New(rand.NewSource(s.Config.Seed)),
		trained: s.Trained,
	}
}

type UncertaintyState struct {
	Config  RegressorConfig `json:"config"`
	Cell    CellState       `json:"cell"`
	Trunk   DenseState      `json:"trunk"`
	Mean    DenseState      `json:"mean"`
	RawVar  DenseState      `json:"raw_var"`
	Trained bool            `json:"trained"`
}

func (u *UncertaintyRegressor) State() UncertaintyState {
	return UncertaintyState{
		Config:  u.cfg,
		Cell:    u.cell.state(),
		Trunk:   u.trunk.state(),
		Mean:    u.mean.state(),
		RawVar:  u.rawVar.state(),
		Trained: u.trained,
	}
}

func UncertaintyFromState(s UncertaintyState) *UncertaintyRegressor {
	s.Config.defaults()
	return &UncertaintyRegressor{
		cfg:     s.Config,
		cell:    cellFromState(s.Cell, s.Config.InputDim, s.Config.Units),
		trunk:   denseFromState(s.Trunk),
		mean:    denseFromState(s.Mean),
		rawVar:  denseFromState(s.RawVar),
		rng:     rand.New(rand.NewSource(s.Config.Seed)),
		trained: s.Trained,
	}
}

type AutoencoderState struct {
	Config  AutoencoderConfig `json:"config"`
	Encoder CellState         `json:"encoder"`
	Code    DenseState        `json:"code"`
	Decoder CellState         `json:"decoder"`
	Output  DenseState        `json:"output"`
	Trained bool              `json:"trained"`
}

func (a *Autoencoder) State() AutoencoderState {
	return AutoencoderState{
		Config:  a.cfg,
		Encoder: a.encoder.state(),
		Code:    a.code.state(),
		Decoder: a.decoder.state(),
		Output:  a.output.state(),
		Trained: a.trained,
	}
}

func AutoencoderFromState(s AutoencoderState) *Autoencoder {
	s.Config.defaults()
	return &Autoencoder{
		cfg:     s.Config,
		encoder: cellFromState(s.Encoder, s.Config.InputDim, s.Config.Units),
		code:    denseFromState(s.Code),
		decoder: cellFromState(s.Decoder, s.Config.Bottleneck, s.Config.Units),
		output:  denseFromState(s.Output),
		rng:     rand.New(rand.NewSource(s.Config.Seed)),
		trained: s.Trained,
	}
}

type ForestState struct {
	Config   ForestConfig  `json:"config"`
	Trees    []*ForestNode `json:"trees"`
	Boundary float64       `json:"boundary"`
	Trained  bool          `json:"trained"`
}

func (f *IsolationForest) State() ForestState {
	return ForestState{Config: f.cfg, Trees: f.trees, Boundary: f.boundary, Trained: f.trained}
}

func ForestFromState(s ForestState) *IsolationForest {
	s.Config.defaults()
	return &IsolationForest{
		cfg:      s.Config,
		trees:    s.Trees,
		boundary: s.Boundary,
		rng:      rand.New(rand.NewSource(s.Config.Seed)),
		trained:  s.Trained,
	}
}
