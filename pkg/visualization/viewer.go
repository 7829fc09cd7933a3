// Package visualization turns volumes into 2D images: orthogonal slices
// through the sample grid, optionally coloured by the volume's lookup table.
package visualization

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"volviewer3d/internal/models"
	"volviewer3d/pkg/transfer"
	"volviewer3d/pkg/volume"
)

// Viewer extracts slices and regions from one grid.
type Viewer struct {
	grid *models.Grid

	// table and the mapping range are only set for viewers built from a volume
	table  []transfer.Entry
	lo, hi float64
}

// NewViewer creates a viewer over grid. It can extract gray slices only.
func NewViewer(grid *models.Grid) *Viewer {
	return &Viewer{grid: grid, lo: math.MinInt16, hi: math.MaxInt16}
}

// FromVolume creates a viewer that also renders coloured slices with the
// current lookup table and mapping range of v.
func FromVolume(v *volume.Volume) *Viewer {
	lo, hi := v.MappingRange()
	return &Viewer{grid: v.Grid(), table: v.LookupTable(), lo: lo, hi: hi}
}

// ParsePlane accepts a plane name or the axis it moves along.
func ParsePlane(name string) (volume.Plane, error) {
	switch strings.ToLower(name) {
	case "x", "sagittal":
		return volume.Sagittal, nil
	case "y", "coronal":
		return volume.Coronal, nil
	case "z", "axial":
		return volume.Axial, nil
	}
	return 0, fmt.Errorf("invalid plane: %s (must be x, y, z or a plane name)", name)
}

// sliceSize returns the image width and height of plane p and the number of
// slices along it.
func (v *Viewer) sliceSize(p volume.Plane) (w, h, n int, err error) {
	d := v.grid.Dims
	switch p {
	case volume.Sagittal:
		return d[2], d[1], d[0], nil
	case volume.Coronal:
		return d[0], d[2], d[1], nil
	case volume.Axial:
		return d[0], d[1], d[2], nil
	}
	return 0, 0, 0, fmt.Errorf("invalid plane: %s", p)
}

// voxel maps pixel (i, j) of slice pos of plane p to a sample.
func (v *Viewer) voxel(p volume.Plane, pos, i, j int) int16 {
	switch p {
	case volume.Sagittal:
		return v.grid.At(pos, j, i)
	case volume.Coronal:
		return v.grid.At(i, pos, j)
	default:
		return v.grid.At(i, j, pos)
	}
}

func (v *Viewer) checkPosition(p volume.Plane, pos int) (w, h int, err error) {
	w, h, n, err := v.sliceSize(p)
	if err != nil {
		return 0, 0, err
	}
	if pos < 0 || pos >= n {
		return 0, 0, fmt.Errorf("position %d outside [0, %d) of the %s plane", pos, n, p)
	}
	return w, h, nil
}

// ExtractSlice extracts slice pos of plane p as 16-bit gray. Samples are
// shifted from the int16 range into the uint16 range.
func (v *Viewer) ExtractSlice(p volume.Plane, pos int) (*image.Gray16, error) {
	w, h, err := v.checkPosition(p, pos)
	if err != nil {
		return nil, err
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			s := v.voxel(p, pos, i, j)
			img.SetGray16(i, j, color.Gray16{Y: uint16(int32(s) - math.MinInt16)})
		}
	}
	return img, nil
}

// RenderSlice extracts slice pos of plane p coloured by the lookup table.
// Samples outside the mapping range take the nearest end of the table.
func (v *Viewer) RenderSlice(p volume.Plane, pos int) (*image.NRGBA, error) {
	if len(v.table) == 0 {
		return nil, fmt.Errorf("viewer has no lookup table")
	}
	w, h, err := v.checkPosition(p, pos)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	last := float64(len(v.table) - 1)
	span := v.hi - v.lo
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			frac := (float64(v.voxel(p, pos, i, j)) - v.lo) / span
			k := int(math.Round(math.Max(0, math.Min(1, frac)) * last))
			e := v.table[k]
			img.SetNRGBA(i, j, color.NRGBA{
				R: channel(e.R), G: channel(e.G), B: channel(e.B), A: channel(e.A),
			})
		}
	}
	return img, nil
}

func channel(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// ExtractRegion copies the box of the given size starting at start into a
// new grid with the same spacing. The origin moves to the box corner.
func (v *Viewer) ExtractRegion(start, size [3]int) (*models.Grid, error) {
	for i := range start {
		if start[i] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[i] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		if start[i]+size[i] > v.grid.Dims[i] {
			return nil, fmt.Errorf("region extends beyond volume boundaries")
		}
	}
	region, err := models.NewGrid(size, v.grid.Spacing)
	if err != nil {
		return nil, err
	}
	for i := range region.Origin {
		region.Origin[i] = v.grid.Origin[i] + float64(start[i])*region.Spacing[i]
	}
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			src := v.grid.Index(start[0], start[1]+y, start[2]+z)
			dst := region.Index(0, y, z)
			copy(region.Data[dst:dst+size[0]], v.grid.Data[src:src+size[0]])
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence saves every slice of plane p into outputDir, coloured
// if the viewer has a lookup table. Up to workers slices are encoded at once.
func (v *Viewer) SaveSliceSequence(ctx context.Context, p volume.Plane, outputDir string, workers int) ([]string, error) {
	_, _, n, err := v.sliceSize(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	files := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for pos := 0; pos < n; pos++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var img image.Image
			var err error
			if len(v.table) > 0 {
				img, err = v.RenderSlice(p, pos)
			} else {
				img, err = v.ExtractSlice(p, pos)
			}
			if err != nil {
				return err
			}
			name := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", p, pos))
			if err := v.SaveSlice(img, name); err != nil {
				return err
			}
			files[pos] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
