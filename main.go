package main

import "github.com/vamseeachanta/webcontext/cmd"

func main() {
	cmd.Execute()
}
