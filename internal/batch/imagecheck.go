package batch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/evanoberholster/imagemeta"
)

// inspectImage logs whatever EXIF metadata the character image carries before
// it is uploaded, which helps correlate a run with the source photo later.
// PNGs frequently carry no metadata at all, so every failure here is logged
// at debug and ignored.
func (r *Runner) inspectImage(path string) {
	name := filepath.Base(path)

	file, err := os.Open(path)
	if err != nil {
		r.log.Debug().Err(err).Str("file", name).Msg("Could not open image for metadata inspection")
		return
	}
	defer file.Close()

	exifData, err := imagemeta.Decode(file)
	if err != nil {
		r.log.Debug().Err(err).Str("file", name).Msg("No readable image metadata")
		return
	}

	evt := r.log.Debug().Str("file", name)
	if cameraMake := strings.TrimSpace(exifData.Make); cameraMake != "" {
		evt = evt.Str("camera_make", cameraMake)
	}
	if model := strings.TrimSpace(exifData.Model); model != "" {
		evt = evt.Str("camera_model", model)
	}
	if taken := exifData.DateTimeOriginal(); !taken.IsZero() {
		evt = evt.Time("date_taken", taken)
	}
	evt.Msg("Character image metadata")
}
