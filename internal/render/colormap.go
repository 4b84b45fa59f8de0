package render

import (
	"fmt"
	"sort"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// DefaultColorMap is the diverging blue-red map used for temperatures.
const DefaultColorMap = "coolwarm"

var colorMaps = map[string]func() palette.ColorMap{
	"coolwarm":           func() palette.ColorMap { return moreland.SmoothBlueRed() },
	"blackbody":          moreland.BlackBody,
	"extended-blackbody": moreland.ExtendedBlackBody,
	"kindlmann":          moreland.Kindlmann,
	"extended-kindlmann": moreland.ExtendedKindlmann,
}

// ColorMapNames lists the supported color map names.
func ColorMapNames() []string {
	names := make([]string, 0, len(colorMaps))
	for name := range colorMaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewColorMap returns a fresh color map by name. Color maps carry their own
// range, so every plot gets its own instance.
func NewColorMap(name string) (palette.ColorMap, error) {
	if name == "" {
		name = DefaultColorMap
	}
	f, ok := colorMaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown color map %q, expected one of %v", name, ColorMapNames())
	}
	return f(), nil
}
