package source

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Open loads an image by name: a synthetic description, a .npy file or an
// HDF5 file (.h5, .hdf5). For HDF5 an optional dataset follows a '#',
// e.g. "scan.h5#/volume". labels override the dimension names of npy files.
func Open(name string, labels []string) (*ArrayImage, error) {
	if strings.HasPrefix(name, SyntheticPrefix) {
		return ParseSynthetic(name)
	}
	path, dataset := name, ""
	if i := strings.LastIndexByte(name, '#'); i >= 0 {
		path, dataset = name[:i], name[i+1:]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return LoadNPY(path, labels)
	case ".h5", ".hdf5":
		return LoadHDF5(path, dataset)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", name)
	}
}
