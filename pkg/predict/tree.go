package predict

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Node is one decision-tree node. Exported fields keep the model
// JSON-serializable for persistence.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"` // leaf: mean label (acceptance probability)
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

// predict walks the tree for one feature vector.
func (n *Node) predict(vec []float64) float64 {
	for !n.Leaf {
		if vec[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// gini computes binary gini impurity of a label subset.
func gini(labels []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var pos float64
	for _, l := range labels {
		pos += l
	}
	p := pos / float64(len(labels))
	return 2 * p * (1 - p)
}

func mean(labels []float64) float64 {
	if len(labels) == 0 {
		return 0.5
	}
	var sum float64
	for _, l := range labels {
		sum += l
	}
	return sum / float64(len(labels))
}

func leaf(labels []float64) *Node {
	return &Node{Leaf: true, Value: mean(labels)}
}

// medianThreshold is the split point for a feature: the empirical median
// of its observed values. Robust against outliers and works uniformly for
// one-hot and numeric features.
func medianThreshold(features [][]float64, feature int) float64 {
	values := make([]float64, len(features))
	for i, row := range features {
		values[i] = row[feature]
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}

// buildTree grows a tree recursively. At each node the feature whose
// median split yields the lowest weighted gini impurity wins; nodes stop
// growing at maxDepth, below minLeaf samples, or when already pure.
// featureSample picks a random subset of features per split so bagged
// trees decorrelate.
func buildTree(features [][]float64, labels []float64, depth, maxDepth, minLeaf int, rng *rand.Rand) *Node {
	if depth >= maxDepth || len(labels) < 2*minLeaf || gini(labels) == 0 {
		return leaf(labels)
	}

	nFeatures := len(features[0])
	candidates := featureSample(nFeatures, rng)

	bestGini := gini(labels)
	bestFeature := -1
	var bestThreshold float64
	var bestLeft, bestRight []int

	for _, f := range candidates {
		threshold := medianThreshold(features, f)

		var left, right []int
		for i, row := range features {
			if row[f] <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) < minLeaf || len(right) < minLeaf {
			continue
		}

		weighted := (float64(len(left))*gini(pick(labels, left)) +
			float64(len(right))*gini(pick(labels, right))) / float64(len(labels))
		if weighted < bestGini {
			bestGini = weighted
			bestFeature = f
			bestThreshold = threshold
			bestLeft, bestRight = left, right
		}
	}

	if bestFeature < 0 {
		return leaf(labels)
	}

	return &Node{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      buildTree(pickRows(features, bestLeft), pick(labels, bestLeft), depth+1, maxDepth, minLeaf, rng),
		Right:     buildTree(pickRows(features, bestRight), pick(labels, bestRight), depth+1, maxDepth, minLeaf, rng),
	}
}

// featureSample draws sqrt(n) features without replacement, at least two.
func featureSample(n int, rng *rand.Rand) []int {
	k := 2
	for k*k < n {
		k++
	}
	if k > n {
		k = n
	}
	perm := rng.Perm(n)
	return perm[:k]
}

func pick(labels []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}

func pickRows(features [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = features[j]
	}
	return out
}
