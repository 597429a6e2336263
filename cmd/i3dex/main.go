package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/scenecraft/i3dex"
)

func main() {
	scenePath := flag.String("scene", "", "scene document (JSON) to export")
	settingsPath := flag.String("settings", "", "export settings (TOML), defaults used when omitted")
	outPath := flag.String("out", "", "output path, derived from the scene path when omitted")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "usage: i3dex -scene scene.json [-settings export.toml] [-out file.i3d]")
		os.Exit(2)
	}

	settings := i3dex.DefaultSettings()
	if *settingsPath != "" {
		var err error
		settings, err = i3dex.LoadSettings(*settingsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *verbose {
		settings.Verbose = true
	}

	scene, err := i3dex.LoadScene(*scenePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	output := *outPath
	if output == "" {
		output = strings.TrimSuffix(*scenePath, ".json") + i3dex.FileExtension
	}

	exporter := i3dex.NewExporter(settings, nil)
	if err := exporter.Export(scene, output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
