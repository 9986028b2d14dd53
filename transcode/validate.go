package transcode

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// ValidateFile checks that path names a non-empty regular file with a .wav
// extension whose header starts with the RIFF magic.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return common.NewError(common.KindFileValidation, "validate", path, err)
	}
	if !info.Mode().IsRegular() {
		return common.Errorf(common.KindFileValidation, "validate", "%s is not a regular file", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return common.Errorf(common.KindFileValidation, "validate", "%s does not have a .wav extension", path)
	}
	if info.Size() == 0 {
		return common.Errorf(common.KindFileValidation, "validate", "%s is empty", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return common.NewError(common.KindFileValidation, "validate", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return common.NewError(common.KindFileValidation, "validate", path, err)
	}
	if !bytes.HasPrefix(header[:n], []byte("RIFF")) {
		return common.Errorf(common.KindFileValidation, "validate", "%s has no RIFF header", path)
	}

	return nil
}

// DiscoverFiles lists the .wav files in dir whose name contains taskName,
// sorted by name.
func DiscoverFiles(dir, taskName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".wav") || !strings.Contains(name, taskName) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}

	sort.Strings(files)
	return files, nil
}
