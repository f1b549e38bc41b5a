package main

import "github.com/gymsync/gymsync/cmd"

func main() {
	cmd.Execute()
}
