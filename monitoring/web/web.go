// Package web embeds the page the vmsim monitor serves: a dashboard that
// polls the monitor API for paging statistics, swap usage, address spaces and
// the frame table.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevEnv names the environment variable that, when true, makes the monitor
// serve the dashboard from the source tree so that edits show up on reload.
const DevEnv = "VMSIM_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// GetAssets returns the dashboard files, either embedded in the binary or,
// in development mode, read from the dist directory next to this file.
func GetAssets() http.FileSystem {
	if devMode() {
		dir := sourceDist()
		fmt.Fprintf(os.Stderr, "vmsim monitor: serving dashboard from %s\n", dir)

		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDist() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the dashboard sources")
	}

	return filepath.Join(filepath.Dir(file), "dist")
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevEnv))

	return err == nil && on
}
