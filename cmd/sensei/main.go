// Package main is the entry point for the sensei service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sensei/cmd/sensei/app"
)

func main() {
	app.NewApp().Run()
}
