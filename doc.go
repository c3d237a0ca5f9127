// Package modelpart provides an in-memory, hierarchical model of finite-element
// mesh entities; A model part is a named node in a tree of model parts, and each
// model part shares a subset of the nodes, elements, conditions and properties
// of the tree it belongs to.
//
// Specifically, every entity is created exactly once per tree: entity creation
// always resolves identity at the root model part, such that two requests for
// the same id either describe the same content (and share the same object) or
// fail with a conflict. The created (or pre-existing) entity is then inserted
// into every model part along the path from the root down to the model part on
// which creation was invoked. Hence, ancestors always contain what their
// descendants created, while siblings are unaffected.
//
// Model parts are owned by their Tree; a model part refers to its parent and
// children by position within the tree and never keeps them alive on its own.
//
// See the geometriesio package for populating a tree from external mesh
// sources, and the mdpa package for serialising a tree to the solver's text
// format.
package modelpart
