package main

import (
	"github.com/ColonelBlimp/dtmfaddr/cmd"
	"github.com/ColonelBlimp/dtmfaddr/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
