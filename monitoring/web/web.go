// Package web includes the static pages of the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the static assets. In development mode the files are
// served from the source tree so they can be edited without rebuilding.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, assetPath, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		return http.Dir(path.Join(path.Dir(assetPath), "dist"))
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

// isDevelopmentMode checks if the SOLCLOCK_MONITOR_DEV environment variable
// is set.
func isDevelopmentMode() bool {
	value, exist := os.LookupEnv("SOLCLOCK_MONITOR_DEV")
	if !exist {
		return false
	}

	return strings.ToLower(value) == "true" || value == "1"
}
