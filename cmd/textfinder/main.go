// Command textfinder is the entry point for the Textfinder RAG question
// answering system. It provides a CLI (via Cobra) for corpus ingestion and
// one-shot questions, and an HTTP server for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/shahzaibkhangakhar/Textfinder/cmd/textfinder/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
