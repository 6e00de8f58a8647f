package main

import "github.com/gkatanacio/artifact-fetcher/cmd"

func main() {
	cmd.Execute()
}
