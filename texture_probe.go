package i3dex

import (
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// probeTexture inspects a texture's header and warns about dimensions the
// engine will resample at load time. Unreadable or unknown formats only
// produce a debug note: .dds and friends are perfectly fine textures, they
// just cannot be probed here.
func probeTexture(path string, logger Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Debugf("texture %q could not be opened for probing: %v", path, err)
		return
	}
	defer f.Close()

	config, format, err := image.DecodeConfig(f)
	if err != nil {
		logger.Debugf("texture %q has an unprobeable format: %v", path, err)
		return
	}
	if !isPowerOfTwo(config.Width) || !isPowerOfTwo(config.Height) {
		logger.Warnf("texture %q is %dx%d (%s), not power-of-two; the engine will resample it",
			path, config.Width, config.Height, format)
	}
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}
