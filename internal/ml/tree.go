package ml

import (
	"math/rand/v2"
	"slices"
)

const leaf = -1

type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// regressionTree is a CART tree grown on squared error. For 0/1 targets the
// squared-error reduction equals half the Gini reduction, so the same tree
// serves binary classification with leaf values read as P(label = 1).
type regressionTree struct {
	nodes []treeNode
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int
}

type treeBuilder struct {
	X      [][]float64
	y      []float64
	params treeParams
	rng    *rand.Rand
	tree   *regressionTree
	order  []int
}

func growTree(X [][]float64, y []float64, sample []int, params treeParams, rng *rand.Rand) *regressionTree {
	b := &treeBuilder{
		X:      X,
		y:      y,
		params: params,
		rng:    rng,
		tree:   &regressionTree{},
		order:  make([]int, len(X[0])),
	}
	for i := range b.order {
		b.order[i] = i
	}
	b.build(sample, 0)
	return b.tree
}

func (b *treeBuilder) build(idx []int, depth int) int {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	sse := sumSq - sum*sum/n

	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, treeNode{feature: leaf, left: leaf, right: leaf, value: sum / n})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || sse <= 1e-12 {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, sse)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.tree.nodes[id].feature = feature
	b.tree.nodes[id].threshold = threshold
	b.tree.nodes[id].left = l
	b.tree.nodes[id].right = r
	return id
}

// bestSplit scans a random subset of features; when none of them separates the
// node it keeps drawing until every feature has been tried.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (int, float64, bool) {
	b.rng.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })

	bestFeature, bestThreshold, bestGain := -1, 0.0, 1e-12
	sorted := make([]int, len(idx))

	for k, f := range b.order {
		if k >= b.params.maxFeatures && bestFeature >= 0 {
			break
		}

		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, c int) int {
			switch va, vc := b.X[a][f], b.X[c][f]; {
			case va < vc:
				return -1
			case va > vc:
				return 1
			default:
				return 0
			}
		})

		total, totalSq := 0.0, 0.0
		for _, i := range sorted {
			total += b.y[i]
			totalSq += b.y[i] * b.y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		n := len(sorted)
		for pos := 0; pos < n-1; pos++ {
			yi := b.y[sorted[pos]]
			leftSum += yi
			leftSq += yi * yi

			cur, next := b.X[sorted[pos]][f], b.X[sorted[pos+1]][f]
			if cur == next {
				continue
			}

			nl, nr := float64(pos+1), float64(n-pos-1)
			rightSum, rightSq := total-leftSum, totalSq-leftSq
			childSSE := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if gain := parentSSE - childSSE; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func (t *regressionTree) predict(x []float64) float64 {
	n := &t.nodes[0]
	for n.feature != leaf {
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n.value
}
