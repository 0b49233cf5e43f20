/*
Mariorl is a web-served reinforcement learning harness for a side-scrolling
platformer. Training runs in background goroutines while a browser dashboard
streams the current policy playing the course through a CRT-style shader
pipeline, with live stats over a websocket. Session control (start/stop,
shader toggles) is exposed as a small json api.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"mariorl/game"
	"mariorl/reinforcement"
	"mariorl/server"
)

var (
	dbg        *bool
	host       *string
	port       *string
	configPath *string
	addr       string
)

// TODO: per 12-factor rules, these should be taken from env or config-map; KISS for now.
func init() {
	dbg = flag.Bool("debug", false, "debug mode: train on the small course")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	configPath = flag.String("config", "./config.yaml", "Path to the training config")
	flag.Parse()
	addr = *host + ":" + *port
}

func selectCourse() []string {
	if *dbg {
		return game.DebugCourse
	}
	return game.FullCourse
}

func runApp() (err error) {
	logger := log.New(os.Stderr, "[mariorl] ", log.LstdFlags)

	var algConfig *reinforcement.TrainingConfig
	if algConfig, err = reinforcement.FromYaml(*configPath); err != nil {
		return
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	var course *game.Course
	if course, err = game.Convert(selectCourse()); err != nil {
		return
	}

	var manager *reinforcement.Manager
	if manager, err = reinforcement.NewManager(
		algConfig,
		course,
		reinforcement.BuiltinRegistry(),
		logger,
	); err != nil {
		return
	}

	var srv *server.Server
	if srv, err = server.NewServer(
		appCtx,
		addr,
		manager,
		logger,
	); err != nil {
		return
	}

	err = srv.Serve()
	return
}

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
	}
}
