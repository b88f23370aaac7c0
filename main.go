package main

import "github.com/mosguinz/qwacker/cmd"

func main() {
	cmd.Execute()
}
