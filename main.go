package main

import "github.com/icco/urack/cmd"

func main() {
	cmd.Execute()
}
