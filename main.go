package main

import (
	"github.com/wardenfs/warden/cmd"
)

func main() {
	cmd.Execute()
}
