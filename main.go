package main

import "github.com/RyanBlaney/sonido-motor/cmd"

func main() {
	cmd.Execute()
}
