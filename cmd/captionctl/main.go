package main

import "github.com/voxacaptions/caption-pipeline/internal/cli"

func main() {
	cli.Main()
}
