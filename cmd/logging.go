package cmd

import (
	"github.com/urfave/cli"

	"github.com/harvey121/TurboNeRF/log"
)

var logger = log.New("turbonerf")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}
