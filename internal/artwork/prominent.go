package artwork

import (
	"fmt"
	"image"

	"github.com/EdlinOrg/prominentcolor"

	"karolbroda.com/overlyric/internal/colors"
)

// Prominent clusters with prominentcolor. Its results come back sorted by
// pixel count rather than in centroid order.
type Prominent struct{}

func (Prominent) Cluster(img image.Image, k int) ([]Cluster, error) {
	items, err := prominentcolor.KmeansWithAll(k, img, prominentcolor.ArgumentNoCropping, prominentcolor.DefaultSize, nil)
	if err != nil {
		return nil, fmt.Errorf("prominentcolor: %w", err)
	}

	result := make([]Cluster, 0, len(items))
	for _, item := range items {
		result = append(result, Cluster{
			Color: colors.RGB{
				R: uint8(item.Color.R),
				G: uint8(item.Color.G),
				B: uint8(item.Color.B),
			},
			Weight: item.Cnt,
		})
	}
	return result, nil
}

// ClustererByName maps the config value onto an implementation.
func ClustererByName(name string, seed uint64) (Clusterer, error) {
	switch name {
	case "", "kmeans":
		return NewKMeans(seed), nil
	case "prominent":
		return Prominent{}, nil
	default:
		return nil, fmt.Errorf("unknown clusterer %q (want kmeans or prominent)", name)
	}
}
