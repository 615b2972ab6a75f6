package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/manningwu07/seq2seq/IO"
	"github.com/manningwu07/seq2seq/decode"
	"github.com/manningwu07/seq2seq/params"
	"github.com/manningwu07/seq2seq/transformer"
	"github.com/manningwu07/seq2seq/viz"
	"github.com/manningwu07/seq2seq/vocab"
)

var attentionPath string

var translateCmd = &cobra.Command{
	Use:   "translate [sentence]",
	Short: "Translate a German sentence with a trained model",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVar(&attentionPath, "attention", "", "write a cross-attention heatmap PNG to this path")
	translateCmd.Flags().Int("max-len", 0, "override the decoding length cap")
	mustBindPFlag("decode.max_len", translateCmd.Flags().Lookup("max-len"))
}

func runTranslate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg := params.FromViper(viper.GetViper())
	model, err := transformer.Load(cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	modelDir := filepath.Dir(cfg.ModelPath)
	srcVocab, err := vocab.LoadJSON(filepath.Join(modelDir, "vocab.de.json"))
	if err != nil {
		return err
	}
	tgtVocab, err := vocab.LoadJSON(filepath.Join(modelDir, "vocab.en.json"))
	if err != nil {
		return err
	}

	// a tokenizer.json beside the model means it was trained with subwords
	var tok IO.Tokenizer = IO.WordTokenizer{}
	if tokPath := filepath.Join(modelDir, "tokenizer.json"); fileExists(tokPath) {
		bpe, err := IO.LoadBPE(tokPath)
		if err != nil {
			return err
		}
		tok = bpe
	}
	srcPipe := &IO.Pipeline{Tok: tok, Vocab: srcVocab}
	tgtPipe := &IO.Pipeline{Tok: tok, Vocab: tgtVocab}

	sentence := strings.Join(args, " ")
	res := decode.Translate(model, srcPipe, tgtPipe, sentence, cfg.MaxDecodeLen)
	fmt.Println(res.Text)

	if attentionPath != "" {
		avg, err := viz.AverageHeads(model.CrossAttention())
		if err != nil {
			return err
		}
		srcTokens := srcVocab.Tokens(res.Src)
		tgtTokens := tgtVocab.Tokens(res.IDs[:len(res.IDs)-1])
		if err := viz.SaveHeatmap(avg, srcTokens, tgtTokens, attentionPath); err != nil {
			return fmt.Errorf("render attention: %w", err)
		}
		logger.Info("attention heatmap written", zap.String("path", attentionPath))
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
