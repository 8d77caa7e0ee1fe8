// Package container implements the named hierarchy every Cue Logic object
// lives in.
//
// A Container has a short name (its immutable key, camelCase), a nice name
// (display name, unique among siblings), typed Parameters and child
// Containers. Containers export to and import from a Snapshot, the tree
// that the project store serialises as JSON or YAML.
//
// Structural changes (children or parameters added and removed, renames)
// bubble up the tree as StructureEvents so that owners can rebind cached
// references.
package container
