package main

import "QFMResolver/cmd"

func main() {
	cmd.Execute()
}
