package train

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/utils"
)

// Trainer runs the fixed-epoch teacher-forcing loop: no learning-rate
// schedule, no early stopping, one checkpoint at the very end. Optimizer
// steps happen inside the model's Backward pass, one step per sequence.
type Trainer struct {
	cfg    params.Config
	model  *transformer.Model
	logger *zap.Logger
}

func New(cfg params.Config, model *transformer.Model, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, model: model, logger: logger}
}

// Run trains for cfg.Epochs over the training batches, validating after
// every epoch, then saves the model to cfg.ModelPath.
func (t *Trainer) Run(trainBatches, validBatches []IO.Batch) error {
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		trainLoss := t.runEpoch(trainBatches, true)
		validLoss := t.runEpoch(validBatches, false)
		t.logger.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("valid_loss", validLoss),
			zap.Duration("elapsed", time.Since(start)))
	}
	if err := transformer.Save(t.model, t.cfg.ModelPath); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	t.logger.Info("model saved", zap.String("path", t.cfg.ModelPath))
	return nil
}

// Validate runs a forward-only pass over batches and returns the loss. The
// model is not mutated.
func (t *Trainer) Validate(batches []IO.Batch) float64 {
	return t.runEpoch(batches, false)
}

// runEpoch walks every sequence of every batch. Loss is the summed
// per-position cross-entropy divided by the number of sequences processed.
func (t *Trainer) runEpoch(batches []IO.Batch, update bool) float64 {
	totalLoss := 0.0
	numSeqs := 0
	for _, b := range batches {
		for i := range b.Src {
			loss, ok := t.step(b.Src[i], b.Tgt[i], update)
			if !ok {
				continue
			}
			totalLoss += loss
			numSeqs++
		}
	}
	if numSeqs == 0 {
		return 0
	}
	return totalLoss / float64(numSeqs)
}

// step runs one sequence pair. The decoder sees tgt[:L-1] and is scored
// against tgt[1:]; positions whose gold token is padding contribute neither
// loss nor gradient.
func (t *Trainer) step(src, tgt []int, update bool) (float64, bool) {
	if len(tgt) < 2 {
		return 0, false
	}
	tgtIn := tgt[:len(tgt)-1]
	gold := tgt[1:]

	srcPad := utils.PaddingMask(src, params.PadID)
	srcMask := utils.ApplyKeyPadding(utils.FullMask(len(src), len(src)), srcPad)
	tgtMask := utils.ApplyKeyPadding(utils.CausalMask(len(tgtIn)), utils.PaddingMask(tgtIn, params.PadID))
	memMask := utils.ApplyKeyPadding(utils.FullMask(len(tgtIn), len(src)), srcPad)

	memory := t.model.Encode(src, srcMask)
	hidden := t.model.Decode(tgtIn, memory, tgtMask, memMask)
	logits := t.model.Project(hidden) // (|V| x L-1)

	loss, dLogits := sequenceLoss(logits, gold)
	if update {
		t.model.Backward(dLogits)
	}
	return loss, true
}

// sequenceLoss sums cross-entropy over non-padding positions and assembles
// the logits gradient, zero at skipped columns.
func sequenceLoss(logits *mat.Dense, gold []int) (float64, *mat.Dense) {
	rows, cols := logits.Dims()
	if cols != len(gold) {
		panic("sequenceLoss: logits columns do not match gold length")
	}
	dLogits := mat.NewDense(rows, cols, nil)
	total := 0.0
	for j, g := range gold {
		if g == params.PadID {
			continue
		}
		col := mat.NewDense(rows, 1, nil)
		for i := 0; i < rows; i++ {
			col.Set(i, 0, logits.At(i, j))
		}
		loss, grad := utils.CrossEntropyWithIndex(col, g)
		total += loss
		for i := 0; i < rows; i++ {
			dLogits.Set(i, j, grad.At(i, 0))
		}
	}
	return total, dLogits
}
