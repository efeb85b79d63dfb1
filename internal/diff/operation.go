package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/ucsync/ucsync/internal/catalog"
)

// Operation is the action carried by a plan node.
type Operation interface {
	Describe() string
	isOperation()
}

// Level names a hierarchy level for grouping nodes.
type Level string

const (
	LevelForest  Level = "forest"
	LevelCatalog Level = "catalog"
	LevelSchema  Level = "schema"
)

// Group emits nothing itself; it only carries the changes found below it.
type Group struct {
	Level Level
	Name  string
}

type CreateCatalog struct {
	Name string
}

type CreateSchema struct {
	Catalog string
	Name    string
}

// DropCatalog, DropSchema and DropTable never have children: drops cascade.
type DropCatalog struct {
	Name string
}

type DropSchema struct {
	Catalog string
	Name    string
}

type DropTable struct {
	Catalog string
	Schema  string
	Name    string
}

// CloneTable creates TargetPath as a clone of Source. Target is nil when the
// table does not exist yet, otherwise it is the stale table being replaced.
type CloneTable struct {
	Source     *catalog.Table
	Target     *catalog.Table
	TargetPath string
}

func (Group) isOperation()         {}
func (CreateCatalog) isOperation() {}
func (CreateSchema) isOperation()  {}
func (DropCatalog) isOperation()   {}
func (DropSchema) isOperation()    {}
func (DropTable) isOperation()     {}
func (CloneTable) isOperation()    {}

func (o Group) Describe() string {
	if o.Name == "" {
		return string(o.Level)
	}
	return string(o.Level) + " " + o.Name
}

func (o CreateCatalog) Describe() string { return "create catalog " + o.Name }
func (o CreateSchema) Describe() string  { return "create schema " + o.Catalog + "." + o.Name }
func (o DropCatalog) Describe() string   { return "drop catalog " + o.Name }
func (o DropSchema) Describe() string    { return "drop schema " + o.Catalog + "." + o.Name }

func (o DropTable) Describe() string {
	return "drop table " + o.Catalog + "." + o.Schema + "." + o.Name
}

func (o CloneTable) Describe() string {
	if o.Target == nil {
		return fmt.Sprintf("clone %s -> %s", o.Source.Path(), o.TargetPath)
	}
	lag := o.Source.UpdatedAt.Sub(o.Target.UpdatedAt)
	return fmt.Sprintf("replace %s from %s (%s behind)", o.TargetPath, o.Source.Path(), lag)
}

// Node is one node of a plan tree.
type Node struct {
	Op       Operation
	Children []*Node
}

// Walk visits the tree depth-first, parents before children.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes that are not groups.
func (n *Node) Count() int {
	var count int
	n.Walk(func(n *Node, _ int) {
		if _, ok := n.Op.(Group); !ok {
			count++
		}
	})
	return count
}

// Format writes an indented outline of the tree to w.
func (n *Node) Format(w io.Writer) error {
	var err error
	n.Walk(func(n *Node, depth int) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n.Op.Describe())
	})
	return err
}

func (n *Node) String() string {
	var b strings.Builder
	_ = n.Format(&b)
	return b.String()
}
