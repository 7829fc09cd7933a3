// Package render is the renderer-side collaborator of the viewer: the
// mapper choice, the process-wide renderer bootstrap and the table of native
// resources owned by rendered volumes.
package render

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMapper is returned by ParseMapper.
var ErrUnknownMapper = errors.New("unknown mapper")

// Mapper selects the volume rendering algorithm.
type Mapper int

const (
	Smart Mapper = iota
	Texture3D
	RayFixedPoint
	GPU
)

var mapperNames = map[Mapper]string{
	Smart:         "smart",
	Texture3D:     "texture3d",
	RayFixedPoint: "rayfixedpoint",
	GPU:           "gpu",
}

func (m Mapper) String() string {
	if s, ok := mapperNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mapper(%d)", int(m))
}

// ParseMapper accepts the mapper names case-insensitively. The empty name
// selects Smart.
func ParseMapper(name string) (Mapper, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Smart, nil
	}
	for m, s := range mapperNames {
		if s == n {
			return m, nil
		}
	}
	return Smart, fmt.Errorf("%q: %w", name, ErrUnknownMapper)
}

// Mappers lists all mappers in declaration order.
func Mappers() []Mapper {
	return []Mapper{Smart, Texture3D, RayFixedPoint, GPU}
}
