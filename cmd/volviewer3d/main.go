package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/dustin/go-humanize"

	"volviewer3d/internal/logger"
	"volviewer3d/pkg/admin"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/config"
	"volviewer3d/pkg/convert"
	"volviewer3d/pkg/render"
	"volviewer3d/pkg/source"
	"volviewer3d/pkg/visualization"
	"volviewer3d/pkg/volume"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, " ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// barSink shows conversion progress on a terminal progress bar.
type barSink struct {
	bar *pb.ProgressBar
}

func newBarSink(prefix string) *barSink {
	bar := pb.New(100)
	bar.Prefix(prefix)
	bar.ShowCounters = false
	bar.Output = os.Stderr
	bar.Start()
	return &barSink{bar: bar}
}

func (s *barSink) Progress(p convert.Progress) { s.bar.Set(p.Value()) }

func (s *barSink) finish() { s.bar.Finish() }

func main() {
	input := flag.String("input", "", "Image to view: file.npy, file.h5[#dataset] or synthetic:X=64,Y=64,Z=32,Time=4")
	labels := flag.String("labels", "", "Comma separated dimension labels for npy files")
	configPath := flag.String("config", "", "YAML or TOML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	mapperName := flag.String("mapper", "", "Volume mapper: smart, texture3d, rayfixedpoint or gpu")
	all := flag.Bool("all", false, "Build every displayed volume instead of the manipulated one")
	noCache := flag.Bool("nocache", false, "Disable volume and grid caching")
	exportDir := flag.String("export", "", "Directory to save slices of the built volumes")
	planeName := flag.String("plane", "", "Slice plane to export: x, y, z, sagittal, coronal or axial")
	var display, hide, subsets, depths listFlag
	flag.Var(&display, "display", "Hidden axis to display, paired with the next -hide (repeatable)")
	flag.Var(&hide, "hide", "Displayed axis to hide, paired with the matching -display (repeatable)")
	flag.Var(&subsets, "subset", "Displayed indices of an axis, as Label=0,2,4 or Label=0-3 (repeatable)")
	flag.Var(&depths, "depth", "Manipulated index of an axis, as Label=2 (repeatable)")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	if *input == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	if *mapperName != "" {
		cfg.Viewer.Mapper = *mapperName
	}
	if *noCache {
		cfg.Viewer.Caching = false
		cfg.Converter.Caching = false
	}
	if *exportDir != "" {
		cfg.Output.ExportDir = *exportDir
	}
	if *planeName != "" {
		cfg.Output.Plane = *planeName
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg := logger.FromConfig(cfg.Logging)
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(display) != len(hide) {
		log.Fatalf("Every -display needs a matching -hide")
	}
	sel := selection{display: display, hide: hide, subsets: subsets, depths: depths}
	if err := run(ctx, cfg, lg, *input, splitList(*labels), sel, *all, *exportDir != ""); err != nil {
		if convert.IsNotEnoughDims(err) {
			fmt.Printf("Nothing to display: %v\n", err)
			return
		}
		log.Fatalf("Viewer failed: %v", err)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// selection holds the axis changes requested on the command line.
type selection struct {
	display, hide   []string
	subsets, depths []string
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger, input string, labels []string,
	sel selection, all, export bool) error {

	fmt.Println("================================")
	fmt.Println("N-DIMENSIONAL VOLUME VIEWER")
	fmt.Println("================================")

	img, err := source.Open(input, labels)
	if err != nil {
		return err
	}
	fmt.Printf("Image: %s (%s)\n", input, source.Describe(img))

	conv, err := convert.NewConverter(img, convert.Options{
		Caching:  cfg.Converter.Caching,
		CacheMB:  cfg.Converter.CacheMB,
		Compress: cfg.Converter.Compress,
		Logger:   lg,
	})
	if err != nil {
		return err
	}

	axes, err := source.Axes(img)
	if err != nil {
		return err
	}
	set, err := axis.NewSet(cfg.Viewer.NumDisplayedAxes, axes)
	if err != nil {
		return err
	}
	set.SetMaxVolumes(cfg.Viewer.MaxVolumes)
	if err := applySelection(set, sel); err != nil {
		return err
	}
	printAxes(set)

	if err := render.Default.Init(); err != nil {
		return err
	}
	res := render.NewResourceTable(render.Default, lg)
	defer res.Close()

	adm := admin.New(set, conv, admin.Options{
		Caching:   cfg.Viewer.Caching,
		MaxCached: cfg.Cache.MaxVolumes,
		Workers:   cfg.Loader.Workers,
		Mapper:    cfg.MapperValue(),
		Resources: res,
		Logger:    lg,
	})
	defer adm.Delete()

	start := time.Now()
	var vols []*volume.Volume
	if all {
		vols, err = buildAll(ctx, adm)
		defer adm.Done(vols...)
	} else {
		var v *volume.Volume
		v, err = buildManipulated(ctx, adm, cfg, lg)
		vols = []*volume.Volume{v}
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nBuilt %d volume(s) in %.2f seconds\n", len(vols), time.Since(start).Seconds())
	if adm.Caching() {
		fmt.Printf("Volume cache: %d volume(s), %s\n", adm.Cache().Len(), humanize.Bytes(uint64(adm.Cache().Bytes())))
	}
	for _, v := range vols {
		printVolume(v)
	}

	if export {
		plane, err := visualization.ParsePlane(cfg.Output.Plane)
		if err != nil {
			return err
		}
		for _, v := range vols {
			dir := filepath.Join(cfg.Output.ExportDir, v.Key())
			files, err := visualization.FromVolume(v).SaveSliceSequence(ctx, plane, dir, cfg.Loader.Workers)
			if err != nil {
				return fmt.Errorf("exporting %s: %w", v.Key(), err)
			}
			fmt.Printf("Saved %d %s slices of %s to %s\n", len(files), plane, v.Key(), dir)
		}
	}
	return nil
}

// buildManipulated loads the manipulated volume through a background loader.
func buildManipulated(ctx context.Context, adm *admin.ImageAdmin, cfg *config.Config, lg *logger.Logger) (*volume.Volume, error) {
	key := adm.Axes().ManipulatedVolume().CacheKey()
	sink := newBarSink(key + " ")

	var result admin.Result
	loader := admin.NewLoader(adm, admin.LoaderOptions{
		QueueLatest: cfg.Viewer.QueueLatest,
		Sink:        sink,
		Done:        func(r admin.Result) { result = r },
		Logger:      lg,
	})
	if _, ok := loader.Request(ctx); !ok {
		return nil, fmt.Errorf("loader refused request for %s", key)
	}
	loader.Wait()
	loader.Close()
	sink.finish()
	return result.Volume, result.Err
}

// buildAll builds every enumerated volume, one progress bar per volume when
// they are built one at a time.
func buildAll(ctx context.Context, adm *admin.ImageAdmin) ([]*volume.Volume, error) {
	keys, err := adm.Axes().CacheKeys()
	if err != nil {
		return nil, err
	}
	fmt.Printf("Building %d volume(s)\n", len(keys))
	if adm.Caching() {
		// A sequential pass with progress bars fills the cache, so
		// GetAllDisplayedVolumes only converts what it evicted.
		descs, err := adm.Axes().EnumerateVolumes()
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			sink := newBarSink(d.CacheKey() + " ")
			_, err := adm.GetOrBuild(convert.WithProgress(ctx, sink), d)
			sink.finish()
			if err != nil {
				return nil, err
			}
		}
	}
	return adm.GetAllDisplayedVolumes(ctx)
}

func applySelection(set *axis.Set, sel selection) error {
	for i := range sel.display {
		if err := set.SwapLabels(sel.display[i], sel.hide[i]); err != nil {
			return err
		}
	}
	for _, s := range sel.subsets {
		a, vals, err := parseAxisIndices(set, s)
		if err != nil {
			return err
		}
		if err := a.SetDisplayed(vals); err != nil {
			return err
		}
	}
	for _, s := range sel.depths {
		a, vals, err := parseAxisIndices(set, s)
		if err != nil {
			return err
		}
		if len(vals) != 1 {
			return fmt.Errorf("depth %q: want exactly one index", s)
		}
		if err := a.SetManipulated(vals[0]); err != nil {
			return err
		}
	}
	return nil
}

// parseAxisIndices reads "Label=indices".
func parseAxisIndices(set *axis.Set, s string) (*axis.Axis, []int, error) {
	label, list, ok := strings.Cut(s, "=")
	if !ok {
		return nil, nil, fmt.Errorf("%q: want Label=indices", s)
	}
	a, ok := set.Lookup(label)
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", s, axis.ErrUnknownAxis)
	}
	vals, err := parseIndices(list)
	if err != nil {
		return nil, nil, fmt.Errorf("%q: %w", s, err)
	}
	return a, vals, nil
}

// parseIndices reads "0,2,5-7".
func parseIndices(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, err
			}
		}
		for v := from; v <= to; v++ {
			out = append(out, v)
		}
	}
	return out, nil
}

func printAxes(set *axis.Set) {
	fmt.Println("\nAxes:")
	for _, a := range set.Axes() {
		role := "hidden"
		if set.IsDisplayed(a) {
			role = "displayed"
		}
		fmt.Printf("- %-8s index=%d extent=%d %s indices=[%s]\n",
			a.Label(), a.Index(), a.Extent(), role, strings.Join(a.DisplayedStrings(), " "))
	}
	fmt.Printf("Volumes to display: %d\n", set.NumVolumes())
	for _, d := range set.First(10) {
		fmt.Printf("  %s\n", d.CacheKey())
	}
	if n := set.NumVolumes(); n > 10 {
		fmt.Printf("  ... %d more\n", n-10)
	}
}

func printVolume(v *volume.Volume) {
	g := v.Grid()
	lo, hi := g.Range()
	h := v.Histogram()
	fmt.Printf("\nVolume %s\n", v.Key())
	fmt.Printf("- Axes: %s\n", strings.Join(v.Axes(), ", "))
	fmt.Printf("- Dimensions: %dx%dx%d, spacing %.3g/%.3g/%.3g\n",
		g.Dims[0], g.Dims[1], g.Dims[2], g.Spacing[0], g.Spacing[1], g.Spacing[2])
	fmt.Printf("- Samples: %s in %s\n", humanize.Comma(int64(g.Len())), humanize.Bytes(uint64(g.Bytes())))
	fmt.Printf("- Range: [%d, %d], mean %.1f, std dev %.1f\n", lo, hi, h.Mean, h.StdDev)
	if bin, count := h.Peak(); count > 0 {
		fmt.Printf("- Histogram peak: %s samples at [%.0f, %.0f)\n",
			humanize.Comma(int64(count)), h.Dividers[bin], h.Dividers[bin+1])
	}
	fmt.Printf("- Mapper: %s, slices %v\n", v.Mapper(), v.CurrentSlices())
}
