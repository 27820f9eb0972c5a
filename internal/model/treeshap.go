package model

// pathElement tracks one feature on the unique decision path: the fraction of
// "zero" paths (feature absent, weighted by cover) and "one" paths (feature
// present, following x) that flow through it, plus its permutation weight.
type pathElement struct {
	feature      int
	zeroFraction float64
	oneFraction  float64
	weight       float64
}

// shap accumulates the Shapley values of one tree for x into phi using the
// polynomial-time TreeSHAP recursion (Lundberg et al., Algorithm 2).
func (t *tree) shap(x, phi []float64, node int, parent []pathElement, zero, one float64, feature int) {
	path := extendPath(parent, zero, one, feature)

	if t.isLeaf(node) {
		for i := 1; i < len(path); i++ {
			w := unwoundPathSum(path, i)
			el := path[i]
			phi[el.feature] += w * (el.oneFraction - el.zeroFraction) * t.value[node]
		}
		return
	}

	hot, cold := t.next(node, x)
	split := t.feature[node]

	inZero, inOne := 1.0, 1.0
	for k := range path {
		if path[k].feature == split {
			inZero, inOne = path[k].zeroFraction, path[k].oneFraction
			path = unwindPath(path, k)
			break
		}
	}

	t.shap(x, phi, hot, path, inZero*t.cover[hot]/t.cover[node], inOne, split)
	t.shap(x, phi, cold, path, inZero*t.cover[cold]/t.cover[node], 0, split)
}

// extendPath returns a copy of parent with one more element appended and the
// permutation weights grown accordingly.
func extendPath(parent []pathElement, zero, one float64, feature int) []pathElement {
	depth := len(parent)
	path := make([]pathElement, depth+1)
	copy(path, parent)

	w := 0.0
	if depth == 0 {
		w = 1
	}
	path[depth] = pathElement{feature: feature, zeroFraction: zero, oneFraction: one, weight: w}

	for i := depth - 1; i >= 0; i-- {
		path[i+1].weight += one * path[i].weight * float64(i+1) / float64(depth+1)
		path[i].weight = zero * path[i].weight * float64(depth-i) / float64(depth+1)
	}
	return path
}

// unwindPath returns a copy of path with element index removed, undoing its
// extension.
func unwindPath(path []pathElement, index int) []pathElement {
	depth := len(path) - 1
	one := path[index].oneFraction
	zero := path[index].zeroFraction

	out := make([]pathElement, len(path))
	copy(out, path)

	next := out[depth].weight
	for i := depth - 1; i >= 0; i-- {
		if one != 0 {
			tmp := out[i].weight
			out[i].weight = next * float64(depth+1) / (float64(i+1) * one)
			next = tmp - out[i].weight*zero*float64(depth-i)/float64(depth+1)
		} else {
			out[i].weight = out[i].weight * float64(depth+1) / (zero * float64(depth-i))
		}
	}

	for i := index; i < depth; i++ {
		out[i].feature = out[i+1].feature
		out[i].zeroFraction = out[i+1].zeroFraction
		out[i].oneFraction = out[i+1].oneFraction
	}
	return out[:depth]
}

// unwoundPathSum is the total weight of path with element index unwound,
// without materialising the unwound path.
func unwoundPathSum(path []pathElement, index int) float64 {
	depth := len(path) - 1
	one := path[index].oneFraction
	zero := path[index].zeroFraction

	total := 0.0
	if one != 0 {
		next := path[depth].weight
		for i := depth - 1; i >= 0; i-- {
			tmp := next / (float64(i+1) * one)
			total += tmp
			next = path[i].weight - tmp*zero*float64(depth-i)
		}
	} else {
		for i := depth - 1; i >= 0; i-- {
			total += path[i].weight / (zero * float64(depth-i))
		}
	}
	return total * float64(depth+1)
}
