package main

import "github.com/manningwu07/seq2seq/cli"

func main() {
	cli.Execute()
}
