package main

import (
	"github.com/ColonelBlimp/rfim/cmd"
	"github.com/ColonelBlimp/rfim/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
