package artwork

import (
	"errors"
	"image"
	"math/rand/v2"
	"slices"

	"karolbroda.com/overlyric/internal/colors"
)

const (
	DefaultSeed = 42

	maxIterations = 25
)

// KMeans is a seeded k-means++ clusterer. The same image and seed always
// produce the same clusters in the same order.
type KMeans struct {
	seed uint64
}

func NewKMeans(seed uint64) *KMeans {
	return &KMeans{seed: seed}
}

type weightedColor struct {
	color  colors.RGB
	weight int
}

func (km *KMeans) Cluster(img image.Image, k int) ([]Cluster, error) {
	points := distinctPoints(samplePixels(img))
	if len(points) == 0 {
		return nil, errors.New("image has no opaque pixels")
	}
	if k > len(points) {
		return nil, &ExtractionError{Distinct: len(points), Clusters: k}
	}

	rng := rand.New(rand.NewPCG(km.seed, km.seed^0x9e3779b97f4a7c15))
	centroids := seedCentroids(points, k, rng)
	assignment := make([]int, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			if nearest := nearestCentroid(p.color, centroids); nearest != assignment[i] {
				assignment[i] = nearest
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}
		centroids = recomputeCentroids(points, assignment, centroids)
	}

	result := make([]Cluster, len(centroids))
	for i, c := range centroids {
		result[i].Color = colors.RGB{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}
	}
	for i, p := range points {
		result[assignment[i]].Weight += p.weight
	}

	return result, nil
}

// distinctPoints collapses pixels into unique colors with counts, in a
// stable order so seeding does not depend on map iteration.
func distinctPoints(pixels []colors.RGB) []weightedColor {
	counts := countColors(pixels)
	points := make([]weightedColor, 0, len(counts))
	for c, n := range counts {
		points = append(points, weightedColor{color: c, weight: n})
	}
	slices.SortFunc(points, func(a, b weightedColor) int {
		return packRGB(a.color) - packRGB(b.color)
	})
	return points
}

func packRGB(c colors.RGB) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// seedCentroids is k-means++ over distinct colors, weighted by pixel count.
// Every seed is a distinct color so no cluster starts empty.
func seedCentroids(points []weightedColor, k int, rng *rand.Rand) [][3]float64 {
	centroids := make([][3]float64, 0, k)
	chosen := make([]bool, len(points))

	first := pickWeighted(points, func(i int) float64 { return float64(points[i].weight) }, rng)
	chosen[first] = true
	centroids = append(centroids, toVec(points[first].color))

	for len(centroids) < k {
		next := pickWeighted(points, func(i int) float64 {
			if chosen[i] {
				return 0
			}
			d := sqDistance(toVec(points[i].color), centroids[nearestCentroid(points[i].color, centroids)])
			return d * float64(points[i].weight)
		}, rng)
		if next < 0 {
			for i := range points {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, toVec(points[next].color))
	}

	return centroids
}

func pickWeighted(points []weightedColor, weight func(i int) float64, rng *rand.Rand) int {
	total := 0.0
	for i := range points {
		total += weight(i)
	}
	if total <= 0 {
		return -1
	}

	target := rng.Float64() * total
	last := -1
	for i := range points {
		w := weight(i)
		if w <= 0 {
			continue
		}
		last = i
		target -= w
		if target < 0 {
			return i
		}
	}
	return last
}

func recomputeCentroids(points []weightedColor, assignment []int, previous [][3]float64) [][3]float64 {
	sums := make([][3]float64, len(previous))
	weights := make([]float64, len(previous))

	for i, p := range points {
		c := assignment[i]
		w := float64(p.weight)
		sums[c][0] += float64(p.color.R) * w
		sums[c][1] += float64(p.color.G) * w
		sums[c][2] += float64(p.color.B) * w
		weights[c] += w
	}

	next := make([][3]float64, len(previous))
	for c := range previous {
		if weights[c] == 0 {
			next[c] = previous[c]
			continue
		}
		next[c] = [3]float64{sums[c][0] / weights[c], sums[c][1] / weights[c], sums[c][2] / weights[c]}
	}
	return next
}

func nearestCentroid(c colors.RGB, centroids [][3]float64) int {
	v := toVec(c)
	best := 0
	bestDist := sqDistance(v, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := sqDistance(v, centroids[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func toVec(c colors.RGB) [3]float64 {
	return [3]float64{float64(c.R), float64(c.G), float64(c.B)}
}

func sqDistance(a [3]float64, b [3]float64) float64 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}
