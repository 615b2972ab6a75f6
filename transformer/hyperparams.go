package transformer

import "github.com/manningwu07/seq2seq/params"

// Optim bundles the optimizer hyperparameters each layer applies in its
// Backward call. Fixed for a whole run: no schedule.
type Optim struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	GradClip    float64
}

// OptimFromConfig derives the per-layer optimizer settings from Config.
func OptimFromConfig(cfg params.Config) Optim {
	return Optim{
		LR:       cfg.LR,
		Beta1:    cfg.AdamBeta1,
		Beta2:    cfg.AdamBeta2,
		Eps:      cfg.AdamEps,
		GradClip: cfg.GradClip,
	}
}
