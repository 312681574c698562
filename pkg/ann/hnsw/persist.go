package hnsw

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/kittclouds/retrieval-core/pkg/directory"
)

// snapshot is the gob-serializable shape of a Graph.
type snapshot struct {
	Params     Params
	Dim        int
	EntryPoint uint32
	HasEntry   bool
	TopLayer   int
	Nodes      []nodeSnapshot
}

type nodeSnapshot struct {
	ID        uint32
	Vec       []float32
	Layer     int
	Neighbors [][]uint32
	Category  uint64
}

// Save persists the graph to path within dir via gob encoding, relying
// on directory.Directory.AtomicWrite for rename-into-place durability,
// so a reader never sees a partly written snapshot.
func (g *Graph) Save(dir directory.Directory, path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := snapshot{
		Params:     g.params,
		Dim:        g.dim,
		EntryPoint: g.entryPoint,
		HasEntry:   g.hasEntry,
		TopLayer:   g.topLayer,
		Nodes:      make([]nodeSnapshot, 0, len(g.nodes)),
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, nodeSnapshot{
			ID: n.id, Vec: n.vec, Layer: n.layer, Neighbors: n.neighbors, Category: n.category,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return fmt.Errorf("hnsw: encode snapshot: %w", err)
	}
	if err := dir.AtomicWrite(path, buf.Bytes()); err != nil {
		return fmt.Errorf("hnsw: write snapshot: %w", err)
	}
	return nil
}

// Load reconstructs a Graph previously written by Save.
func Load(dir directory.Directory, path string) (*Graph, error) {
	r, err := dir.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("hnsw: open snapshot: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("hnsw: read snapshot: %w", err)
	}

	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("hnsw: decode snapshot: %w", err)
	}

	g := New(snap.Dim, snap.Params)
	g.entryPoint = snap.EntryPoint
	g.hasEntry = snap.HasEntry
	g.topLayer = snap.TopLayer
	for _, ns := range snap.Nodes {
		g.nodes[ns.ID] = &node{
			id: ns.ID, vec: ns.Vec, layer: ns.Layer, neighbors: ns.Neighbors, category: ns.Category,
		}
		g.recordCategoryEntry(ns.ID, ns.Category)
	}
	return g, nil
}
