// Package topology resolves the folder tree beneath the gallery output
// root. The tree is rebuilt wholesale from a single filesystem walk on each
// refresh, so it is always internally consistent with one observation of
// the disk; it is never patched incrementally.
package topology

import (
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"smart-gallery/internal/logging"
)

// RootKey identifies the synthetic root node of every tree.
const RootKey = "_root_"

// Reserved cache folder names, excluded from the resolved tree.
const (
	ThumbnailCacheFolderName = ".thumbnails_cache"
	SQLiteCacheFolderName    = ".sqlite_cache"
)

// FolderNode is one directory in the resolved tree.
type FolderNode struct {
	Key          string   `json:"key"`
	Path         string   `json:"-"`
	RelativePath string   `json:"relativePath"`
	DisplayName  string   `json:"displayName"`
	ParentKey    string   `json:"parentKey,omitempty"` // empty only for root
	Children     []string `json:"children"`
}

// Tree is a resolved folder topology: a single root, every non-root node
// reachable from it, no cycles.
type Tree struct {
	nodes map[string]*FolderNode
	root  string
}

// PathToKey derives the stable opaque key for a folder from its
// slash-normalized path relative to the output root.
func PathToKey(relativePath string) string {
	if relativePath == "" || relativePath == "." {
		return RootKey
	}
	normalized := strings.ReplaceAll(relativePath, string(os.PathSeparator), "/")
	return base64.URLEncoding.EncodeToString([]byte(normalized))
}

// KeyToPath reverses PathToKey. Returns ok=false for keys that do not
// decode, which callers treat as "folder not found".
func KeyToPath(key string) (string, bool) {
	if key == RootKey {
		return "", true
	}
	decoded, err := base64.URLEncoding.DecodeString(key)
	if err != nil {
		return "", false
	}
	return strings.ReplaceAll(string(decoded), "/", string(os.PathSeparator)), true
}

// Resolver builds folder trees for a fixed output root.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver rooted at the given output directory.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// Resolve walks the output root and builds the folder tree. Cache-internal
// directories are skipped. A missing root degrades to a tree holding only
// the synthetic root; it is logged but never returned as an error.
func (r *Resolver) Resolve() *Tree {
	tree := &Tree{
		nodes: map[string]*FolderNode{
			RootKey: {
				Key:         RootKey,
				Path:        r.root,
				DisplayName: "Main",
			},
		},
		root: RootKey,
	}

	type discovered struct {
		rel  string
		name string
	}
	var folders []discovered

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == r.root {
				return err
			}
			logging.Warn("topology: skipping %s: %v", path, err)
			return fs.SkipDir
		}
		if !d.IsDir() || path == r.root {
			return nil
		}
		name := d.Name()
		if name == ThumbnailCacheFolderName || name == SQLiteCacheFolderName {
			return fs.SkipDir
		}
		rel, relErr := filepath.Rel(r.root, path)
		if relErr != nil {
			return nil
		}
		folders = append(folders, discovered{rel: rel, name: name})
		return nil
	})
	if err != nil {
		logging.Warn("topology: output root %q not walkable: %v", r.root, err)
		return tree
	}

	// Shallower folders first, so a child's parent is already present by
	// the time the child is inserted.
	sort.Slice(folders, func(i, j int) bool {
		di := strings.Count(folders[i].rel, string(os.PathSeparator))
		dj := strings.Count(folders[j].rel, string(os.PathSeparator))
		if di != dj {
			return di < dj
		}
		return folders[i].rel < folders[j].rel
	})

	for _, f := range folders {
		key := PathToKey(f.rel)
		parentKey := r.parentKeyFor(f.rel)

		parent := r.ensureParent(tree, parentKey)
		parent.Children = append(parent.Children, key)

		tree.nodes[key] = &FolderNode{
			Key:          key,
			Path:         filepath.Join(r.root, f.rel),
			RelativePath: f.rel,
			DisplayName:  f.name,
			ParentKey:    parentKey,
		}
	}

	return tree
}

// ensureParent returns the node for parentKey, synthesizing the whole
// missing chain up to the root when the walk never listed it. This should
// not happen given the depth sort, but a stale listing can race a
// concurrent tree mutation. Every synthesized node is registered as a
// child of its own parent so it stays reachable from the root.
func (r *Resolver) ensureParent(tree *Tree, parentKey string) *FolderNode {
	if node, ok := tree.nodes[parentKey]; ok {
		return node
	}
	parentRel, _ := KeyToPath(parentKey)
	node := &FolderNode{
		Key:          parentKey,
		Path:         filepath.Join(r.root, parentRel),
		RelativePath: parentRel,
		DisplayName:  filepath.Base(parentRel),
		ParentKey:    r.parentKeyFor(parentRel),
	}
	tree.nodes[parentKey] = node
	grand := r.ensureParent(tree, node.ParentKey)
	grand.Children = append(grand.Children, parentKey)
	return node
}

func (r *Resolver) parentKeyFor(rel string) string {
	parent := filepath.Dir(rel)
	if parent == "." || parent == "" {
		return RootKey
	}
	return PathToKey(parent)
}

// Node returns the node for a key, or nil if absent.
func (t *Tree) Node(key string) *FolderNode {
	return t.nodes[key]
}

// Root returns the synthetic root node.
func (t *Tree) Root() *FolderNode {
	return t.nodes[t.root]
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Folders returns every node in the tree, root included, in unspecified
// order.
func (t *Tree) Folders() []*FolderNode {
	out := make([]*FolderNode, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

// Breadcrumb returns the chain of nodes from the root down to key. An
// unknown key yields nil.
func (t *Tree) Breadcrumb(key string) []*FolderNode {
	var chain []*FolderNode
	for key != "" {
		node, ok := t.nodes[key]
		if !ok {
			return nil
		}
		chain = append([]*FolderNode{node}, chain...)
		if node.Key == t.root {
			break
		}
		key = node.ParentKey
	}
	return chain
}
