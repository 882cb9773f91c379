// Package dataset prepares audio files for feature extraction: it resolves
// filelists, enforces the pipeline sample rate, and shapes every item to the
// length contract of its consumer. Training items are cropped or padded to a
// fixed segment length; evaluation items are padded up to the next hop
// multiple so their features align exactly with the waveform.
package dataset

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ParseFilelist reads a newline-separated list of file paths. Blank lines and
// surrounding whitespace are ignored. Paths are kept in file order.
func ParseFilelist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open filelist %q: %w", path, err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read filelist %q: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("dataset: filelist %q contains no paths", path)
	}
	return paths, nil
}
