package IO

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// BaseURL is where missing corpus files are fetched from. Tests and mirrors
// override it before calling Download.
var BaseURL = "https://raw.githubusercontent.com/multi30k/dataset/master/data/task1/raw"

// Partition files of the Multi30k layout: parallel German/English line files
// with identical line counts.
var partitions = map[string][2]string{
	"train": {"train.de", "train.en"},
	"valid": {"val.de", "val.en"},
}

// Pair is one aligned sentence pair, already tokenized.
type Pair struct {
	Src []string // German
	Tgt []string // English
}

// Dataset holds the tokenized training and validation partitions.
type Dataset struct {
	Train []Pair
	Valid []Pair
}

// Download fetches any missing corpus files into dir.
func Download(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, files := range partitions {
		for _, name := range files {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				continue
			}
			if err := fetch(BaseURL+"/"+name, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func fetch(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// LoadDataset reads and tokenizes both partitions from dir.
func LoadDataset(dir string, tok Tokenizer) (*Dataset, error) {
	train, err := loadPartition(dir, "train", tok)
	if err != nil {
		return nil, err
	}
	valid, err := loadPartition(dir, "valid", tok)
	if err != nil {
		return nil, err
	}
	return &Dataset{Train: train, Valid: valid}, nil
}

func loadPartition(dir, name string, tok Tokenizer) ([]Pair, error) {
	files, ok := partitions[name]
	if !ok {
		return nil, fmt.Errorf("unknown partition %q", name)
	}
	src, err := readLines(filepath.Join(dir, files[0]))
	if err != nil {
		return nil, err
	}
	tgt, err := readLines(filepath.Join(dir, files[1]))
	if err != nil {
		return nil, err
	}
	if len(src) != len(tgt) {
		return nil, fmt.Errorf("partition %q: %d source lines but %d target lines", name, len(src), len(tgt))
	}
	return tokenizePairs(src, tgt, tok)
}

// tokenizePairs tokenizes both sides concurrently. Results are written by
// index, so the output order matches the files regardless of scheduling.
func tokenizePairs(src, tgt []string, tok Tokenizer) ([]Pair, error) {
	out := make([]Pair, len(src))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range src {
		g.Go(func() error {
			out[i] = Pair{Src: tok.Tokenize(src[i]), Tgt: tok.Tokenize(tgt[i])}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
