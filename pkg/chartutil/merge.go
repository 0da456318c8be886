// Package chartutil implements the Helm values priority merge (spec.md
// §4.2): accumulated cluster_values_file contents -> accumulated
// global_values -> app values files -> app set_values, lowest to highest.
// The merge itself reuses Helm's own coalesce semantics (dest wins over
// src on key conflict, recursing into nested maps) rather than a naive
// map overwrite, since several apps in the pack rely on partial value
// overrides leaving sibling keys untouched.
package chartutil

// CoalesceTables merges src into dst: any key dst does not already define
// is copied from src; where both define a key to a map, the merge recurses;
// otherwise dst's value wins. This mirrors Helm's own values.yaml <- parent
// chart coalescing behavior, generalized here to arbitrary priority tiers
// rather than chart-dependency tiers.
func CoalesceTables(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = map[string]interface{}{}
	}
	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}
		srcMap, srcIsMap := srcVal.(map[string]interface{})
		dstMap, dstIsMap := dstVal.(map[string]interface{})
		if srcIsMap && dstIsMap {
			dst[key] = CoalesceTables(dstMap, srcMap)
		}
		// else: dst's scalar/list/incompatible-type value wins, untouched.
	}
	return dst
}

// MergeLayers coalesces a list of value layers in increasing priority order
// (layers[0] is lowest priority) into one map. Each layer is merged as the
// new "dst" against the accumulated result as "src", so later layers win.
func MergeLayers(layers ...map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{}
	for _, layer := range layers {
		result = CoalesceTables(copyShallow(layer), result)
	}
	return result
}

func copyShallow(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
