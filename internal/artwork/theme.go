package artwork

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"

	"karolbroda.com/overlyric/internal/colors"
)

const (
	DefaultClusters = 5
	MinClusters     = 2
	MaxClusters     = 10

	// longest side of the sampled image
	sampleSize = 96
)

// ColorPair is the per-track theme: Base fills the overlay, Accent is the text.
type ColorPair struct {
	Base   colors.RGB
	Accent colors.RGB
}

// Secondary is the tone used for the upcoming line in two-line mode.
func (p ColorPair) Secondary() colors.RGB {
	return colors.Halfway(p.Base, p.Accent)
}

func (p ColorPair) String() string {
	return fmt.Sprintf("%s/%s", p.Base.Hex(), p.Accent.Hex())
}

// DefaultTheme is used when the artwork is missing or too plain to cluster.
func DefaultTheme() ColorPair {
	return ColorPair{
		Base:   colors.RGB{R: 0x1a, G: 0x1a, B: 0x1a},
		Accent: colors.RGB{R: 0xff, G: 0xff, B: 0xff},
	}
}

// ExtractionError means the image does not have enough distinct colors for
// the requested cluster count.
type ExtractionError struct {
	Distinct int
	Clusters int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("not enough color variety: %d distinct colors for %d clusters", e.Distinct, e.Clusters)
}

// Cluster is one k-means group: its representative color and pixel count.
type Cluster struct {
	Color  colors.RGB
	Weight int
}

type Clusterer interface {
	Cluster(img image.Image, k int) ([]Cluster, error)
}

type Extractor struct {
	clusters  int
	clusterer Clusterer
}

func NewExtractor(clusters int, clusterer Clusterer) *Extractor {
	if clusters < MinClusters {
		clusters = MinClusters
	}
	if clusters > MaxClusters {
		clusters = MaxClusters
	}
	if clusterer == nil {
		clusterer = NewKMeans(DefaultSeed)
	}
	return &Extractor{clusters: clusters, clusterer: clusterer}
}

// Analysis is everything Extract computed, for inspection.
type Analysis struct {
	Clusters []Cluster
	Pair     ColorPair
}

// Extract clusters the image and returns the two representatives furthest
// apart in RGB space. Of the two, the more saturated one becomes Base.
func (e *Extractor) Extract(img image.Image) (ColorPair, error) {
	analysis, err := e.Analyze(img)
	if err != nil {
		return ColorPair{}, err
	}
	return analysis.Pair, nil
}

func (e *Extractor) Analyze(img image.Image) (*Analysis, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}

	distinct := len(countColors(samplePixels(img)))
	if distinct < e.clusters {
		return nil, &ExtractionError{Distinct: distinct, Clusters: e.clusters}
	}

	clusters, err := e.clusterer.Cluster(img, e.clusters)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	pair, err := pickPair(clusters, distinct)
	if err != nil {
		return nil, err
	}

	return &Analysis{Clusters: clusters, Pair: pair}, nil
}

func pickPair(clusters []Cluster, distinct int) (ColorPair, error) {
	if len(clusters) < 2 {
		return ColorPair{}, &ExtractionError{Distinct: distinct, Clusters: len(clusters)}
	}

	bestI, bestJ := -1, -1
	bestDistance := 0.0
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			d := colors.Distance(clusters[i].Color, clusters[j].Color)
			if d > bestDistance {
				bestDistance = d
				bestI, bestJ = i, j
			}
		}
	}

	if bestI < 0 {
		return ColorPair{}, &ExtractionError{Distinct: 1, Clusters: len(clusters)}
	}

	base, accent := clusters[bestI].Color, clusters[bestJ].Color
	if accent.Saturation() > base.Saturation() {
		base, accent = accent, base
	}

	return ColorPair{Base: base, Accent: accent}, nil
}

// MostSaturated returns the index of the first cluster with the highest saturation.
func MostSaturated(clusters []Cluster) int {
	best := -1
	bestSat := -1.0
	for i, c := range clusters {
		if s := c.Color.Saturation(); s > bestSat {
			bestSat = s
			best = i
		}
	}
	return best
}

// samplePixels downscales without interpolation so no blended colors are
// introduced, then drops mostly transparent pixels.
func samplePixels(img image.Image) []colors.RGB {
	small := resize.Thumbnail(sampleSize, sampleSize, img, resize.NearestNeighbor)
	bounds := small.Bounds()

	pixels := make([]colors.RGB, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := small.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			pixels = append(pixels, colors.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)})
		}
	}
	return pixels
}

func countColors(pixels []colors.RGB) map[colors.RGB]int {
	counts := make(map[colors.RGB]int)
	for _, p := range pixels {
		counts[p]++
	}
	return counts
}
