package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/train"
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/vocab"
)

var (
	download bool
	useBPE   bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the translation model on the corpus in the data directory",
	RunE:  runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().BoolVar(&download, "download", false, "fetch missing corpus files first")
	trainCmd.Flags().BoolVar(&useBPE, "bpe", false, "train a BPE subword tokenizer instead of word-level vocabularies")
	trainCmd.Flags().Int("epochs", 0, "override the number of training epochs")
	trainCmd.Flags().Int("batch-size", 0, "override the batch size")
	mustBindPFlag("train.epochs", trainCmd.Flags().Lookup("epochs"))
	mustBindPFlag("train.batch_size", trainCmd.Flags().Lookup("batch-size"))
}

func runTrain(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg := params.FromViper(viper.GetViper())
	if err := cfg.Validate(); err != nil {
		return err
	}

	if download {
		logger.Info("downloading corpus", zap.String("dir", cfg.DataDir), zap.String("base_url", IO.BaseURL))
		if err := IO.Download(cfg.DataDir); err != nil {
			return fmt.Errorf("download corpus: %w", err)
		}
	}

	modelDir := filepath.Dir(cfg.ModelPath)
	var tok IO.Tokenizer = IO.WordTokenizer{}
	var srcVocab, tgtVocab vocab.Vocabulary

	if useBPE {
		// one joint subword model over both languages
		size := cfg.VocabSize
		if size <= 0 {
			size = 8000
		}
		bpe, err := IO.TrainBPE(
			[]string{filepath.Join(cfg.DataDir, "train.de"), filepath.Join(cfg.DataDir, "train.en")},
			filepath.Join(modelDir, "tokenizer.json"), size)
		if err != nil {
			return fmt.Errorf("train bpe tokenizer: %w", err)
		}
		joint, err := bpe.Vocab()
		if err != nil {
			return err
		}
		tok = bpe
		srcVocab, tgtVocab = joint, joint
		logger.Info("bpe tokenizer trained", zap.Int("vocab_size", joint.Size()))
	}

	ds, err := IO.LoadDataset(cfg.DataDir, tok)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded",
		zap.Int("train_pairs", len(ds.Train)),
		zap.Int("valid_pairs", len(ds.Valid)))

	if !useBPE {
		var srcToks, tgtToks []string
		for _, p := range ds.Train {
			srcToks = append(srcToks, p.Src...)
			tgtToks = append(tgtToks, p.Tgt...)
		}
		opts := vocab.Options{MaxSize: cfg.VocabSize, MinFreq: cfg.MinFreq}
		srcVocab = vocab.Build(srcToks, opts)
		tgtVocab = vocab.Build(tgtToks, opts)
		logger.Info("vocabularies built",
			zap.Int("src_size", srcVocab.Size()),
			zap.Int("tgt_size", tgtVocab.Size()))
	}

	if err := srcVocab.SaveJSON(filepath.Join(modelDir, "vocab.de.json")); err != nil {
		return err
	}
	if err := tgtVocab.SaveJSON(filepath.Join(modelDir, "vocab.en.json")); err != nil {
		return err
	}

	srcPipe := &IO.Pipeline{Tok: tok, Vocab: srcVocab}
	tgtPipe := &IO.Pipeline{Tok: tok, Vocab: tgtVocab}
	trainEx := IO.FilterByLength(IO.EncodePairs(ds.Train, srcPipe, tgtPipe), cfg.MaxSeqLen)
	validEx := IO.FilterByLength(IO.EncodePairs(ds.Valid, srcPipe, tgtPipe), cfg.MaxSeqLen)
	logger.Info("examples prepared",
		zap.Int("train", len(trainEx)),
		zap.Int("valid", len(validEx)))
	trainBatches := IO.MakeBatches(trainEx, cfg.BatchSize)
	validBatches := IO.MakeBatches(validEx, cfg.BatchSize)

	model := transformer.New(cfg, srcVocab.Size(), tgtVocab.Size())
	return train.New(cfg, model, logger).Run(trainBatches, validBatches)
}
