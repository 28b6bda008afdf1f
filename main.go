package main

import "github.com/notargets/goam/cmd"

func main() {
	cmd.Execute()
}
