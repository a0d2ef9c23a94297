package main

import "github.com/Turbootzz/mrpack-installer/cmd"

func main() {
	cmd.Execute()
}
