package main

import (
	"fmt"
	"os"

	"github.com/grez-lucas/numericable-scraper/cmd/root"
	synccmd "github.com/grez-lucas/numericable-scraper/cmd/sync"
)

func init() {
	root.Init()
	root.Cmd.AddCommand(synccmd.Cmd)
}

func main() {
	if err := root.Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
