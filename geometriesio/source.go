package geometriesio

// Coordinates is an (x, y, z) location of a mesh node.
type Coordinates [3]float64

// Nodes maps node ids to their coordinates, as reported by a MeshSource.
type Nodes map[int]Coordinates

// Connectivities maps origin geometry ids (the mesh source's own identifiers of
// its geometric entities) to ordered node ids, in the mesh source's corner
// ordering convention.
type Connectivities map[int][]int

// Entities groups the connectivities reported by a MeshSource by geometry type
// (e.g. "Triangle", "Tetra").
type Entities map[string]Connectivities

// Well-known geometry types reported by mesh sources.
const (
	GeometryNode       = "Node"
	Geometry0D         = "0D"
	GeometryBall       = "Ball"
	GeometryEdge       = "Edge"
	GeometryTriangle   = "Triangle"
	GeometryQuadrangle = "Quadrangle"
	GeometryTetra      = "Tetra"
	GeometryHexa       = "Hexa"
	GeometryPenta      = "Penta"
)

// A MeshSource describes a mesh held by an external mesh-extraction backend.
//
// Implementations report node ids in a numbering space shared by every
// MeshSource of the same main mesh; AddMeshes relies on that to merge several
// sources into one tree.
type MeshSource interface {
	// GetNodesAndGeometricalEntities returns the nodes of the mesh, and for each
	// of the requested geometry types, the connectivities of the mesh's entities
	// of that type. Geometry types the mesh does not contain are omitted (or
	// reported empty).
	//
	// The returned nodes include at least every node referenced by the returned
	// connectivities.
	GetNodesAndGeometricalEntities(geometryTypes []string) (Nodes, Entities, error)

	// BelongsToSameMainMeshAs reports whether all the given sources describe
	// (parts of) the same main mesh as the receiver.
	BelongsToSameMainMeshAs(others ...MeshSource) bool
}
