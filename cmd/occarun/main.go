// Command occarun builds and launches a single kernel against a chosen
// backend, printing the device list or a launch timing depending on the
// flags given.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	occa "github.com/occa-go/occa"
	"github.com/occa-go/occa/internal/constants"
	"github.com/occa-go/occa/internal/geometry"
	"github.com/occa-go/occa/internal/logging"

	_ "github.com/occa-go/occa/backend/cl"
	_ "github.com/occa-go/occa/backend/driver"
	_ "github.com/occa-go/occa/backend/host"
)

func main() {
	var (
		list       = flag.Bool("list", false, "List available backend/platform/device triples and exit")
		mode       = flag.String("mode", string(constants.HostShared), "Backend mode: HostShared, OpenCL, or DriverCompute")
		platformID = flag.Int("platform", 0, "Platform id")
		deviceID   = flag.Int("device", 0, "Device id")
		source     = flag.String("source", "", "Kernel source file")
		function   = flag.String("function", "", "Kernel entry-point function name")
		outerStr   = flag.String("outer", "1,1,1", "Outer (grid) dims, comma-separated")
		innerStr   = flag.String("inner", "1,1,1", "Inner (block) dims, comma-separated")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	if *list {
		ids, err := occa.Devices()
		if err != nil {
			log.Fatalf("listing devices: %v", err)
		}
		for _, id := range ids {
			fmt.Printf("%s platform=%d device=%d\n", id.Backend, id.PlatformID, id.DeviceID)
		}
		return
	}

	if *source == "" || *function == "" {
		fmt.Fprintln(os.Stderr, "occarun: -source and -function are required unless -list is given")
		flag.Usage()
		os.Exit(2)
	}

	outer, err := parseDims(*outerStr)
	if err != nil {
		log.Fatalf("invalid -outer: %v", err)
	}
	inner, err := parseDims(*innerStr)
	if err != nil {
		log.Fatalf("invalid -inner: %v", err)
	}
	geom, err := geometry.New(3, outer, inner)
	if err != nil {
		log.Fatalf("invalid launch geometry: %v", err)
	}

	device, err := occa.NewDevice(constants.ModeTag(*mode), *platformID, *deviceID, nil)
	if err != nil {
		log.Fatalf("creating device: %v", err)
	}
	defer device.Teardown()

	kernel, err := device.BuildKernelFromSource(*source, *function, occa.NewKernelInfo())
	if err != nil {
		log.Fatalf("building kernel: %v", err)
	}
	defer kernel.Free()

	tagStart, err := device.TagStream()
	if err != nil {
		log.Fatalf("tagging stream: %v", err)
	}
	if err := kernel.Run(geom); err != nil {
		log.Fatalf("launching kernel: %v", err)
	}
	tagEnd, err := device.TagStream()
	if err != nil {
		log.Fatalf("tagging stream: %v", err)
	}

	elapsed, err := device.TimeBetween(tagStart, tagEnd)
	if err != nil {
		log.Fatalf("timing launch: %v", err)
	}
	fmt.Printf("launched %s: %v (total work-items: %d)\n", *function, elapsed, geom.Total())
}

// parseDims parses a comma-separated "x,y,z" triple into a
// geometry.Dim, defaulting missing trailing axes to 1.
func parseDims(s string) (geometry.Dim, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return geometry.Dim{}, fmt.Errorf("at most 3 components, got %d", len(parts))
	}
	vals := [3]uint64{1, 1, 1}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return geometry.Dim{}, fmt.Errorf("component %d: %w", i, err)
		}
		vals[i] = n
	}
	return geometry.Dim{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
