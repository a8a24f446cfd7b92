package main

import "github.com/deemkeen/nodelink/cmd"

func main() {
	cmd.Execute()
}
