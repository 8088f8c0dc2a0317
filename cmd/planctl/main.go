package main

import "github.com/pilab-dev/planauth/cmd/planctl/cmd"

func main() {
	cmd.Execute()
}
