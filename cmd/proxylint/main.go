package main

import "github.com/OpenMined/proxylint/internal/cmd"

func main() {
	cmd.Execute()
}
