package batch

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindImageFile finds the single character image in folder matching pattern.
// Zero matches or more than one match is an error; batches pair exactly one
// image with all audio clips.
func FindImageFile(folder, pattern string) (string, error) {
	matches, err := globFiles(folder, pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no image matching %s found in %s", pattern, folder)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("multiple images matching %s found in %s, only one is allowed", pattern, folder)
	}
	return matches[0], nil
}

// FindAudioFiles returns all audio files in folder matching pattern, in
// sorted order. The caller decides whether an empty result is an error.
func FindAudioFiles(folder, pattern string) ([]string, error) {
	return globFiles(folder, pattern)
}

// globFiles matches pattern against the folder's direct entries (no
// recursion) and keeps only regular files. filepath.Glob returns matches
// sorted, which fixes the batch processing order.
func globFiles(folder, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(folder, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}
