package main

import "github.com/deploymenttheory/go-agcfs/cmd"

func main() {
	cmd.Execute()
}
