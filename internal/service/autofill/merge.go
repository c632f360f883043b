package autofill

import "strings"

// ApplyFieldUpdates merges dot-delimited path updates into a nested form
// state tree and returns the merged tree. Missing intermediate objects are
// created on the fly; sibling fields not mentioned in the update are left
// untouched. The input tree is not mutated: every map on a written path is
// copied, untouched subtrees are shared.
func ApplyFieldUpdates(state map[string]any, updates map[string]any) map[string]any {
	out := cloneMap(state)
	for path, value := range updates {
		setPath(out, strings.Split(path, "."), value)
	}
	return out
}

// setPath walks the tree along parts, copying or creating intermediate maps,
// and assigns value at the leaf. A non-map intermediate is replaced by a map;
// the leaf write wins over whatever scalar sat on the path.
func setPath(node map[string]any, parts []string, value any) {
	if len(parts) == 1 {
		node[parts[0]] = value
		return
	}

	child, ok := node[parts[0]].(map[string]any)
	if ok {
		child = cloneMap(child)
	} else {
		child = make(map[string]any)
	}
	node[parts[0]] = child
	setPath(child, parts[1:], value)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
