package geometriesio

import "fmt"

// Some cell shapes list their corners in a different order in mesh sources
// than the solver expects. Each permutation lists, for every position of the
// solver's connectivity, the position in the source's connectivity.
var permutations = map[string][]int{
	GeometryTetra: {0, 2, 1, 3},
	GeometryHexa:  {0, 3, 2, 1, 4, 7, 6, 5},
	GeometryPenta: {0, 2, 1, 3, 5, 4},
}

// Reorder converts a connectivity of the given geometry type from the mesh
// source's corner ordering to the solver's. Geometry types without a known
// permutation pass through unchanged. The returned slice never aliases
// connectivity.
//
// Reorder fails with ErrInvalidConnectivity if a reordered geometry type has
// the wrong number of nodes.
func Reorder(geometryType string, connectivity []int) ([]int, error) {
	perm, ok := permutations[geometryType]
	if !ok {
		return append([]int(nil), connectivity...), nil
	}
	if len(connectivity) != len(perm) {
		return nil, fmt.Errorf("%s needs %d nodes, got %v: %w", geometryType, len(perm), connectivity, ErrInvalidConnectivity)
	}
	reordered := make([]int, len(perm))
	for i, j := range perm {
		reordered[i] = connectivity[j]
	}
	return reordered, nil
}
