// Package diff computes an RFC 6902 JSON Patch transforming one JSON
// value into another (spec §6, §8's "diff ⇒ patch round-trip"
// property).
package diff

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/luoyjx/jsoncrdt/patch"
	"github.com/luoyjx/jsoncrdt/pointer"
)

// Error reports a depth overflow while diffing.
type Error struct {
	Path []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("diff: max depth exceeded at %v", e.Path)
}

// Diff returns the patch that transforms x into y. cellCap bounds the
// n*m LCS table built for any one array comparison (spec §5's resource
// limit); a cellCap of 0 or less means unbounded. maxDepth bounds the
// walk's depth (spec §5's bounded-recursion requirement), using an
// explicit work stack rather than native recursion.
func Diff(x, y any, cellCap, maxDepth int) ([]patch.Operation, error) {
	var ops []patch.Operation

	type frame struct {
		path  []string
		x, y  any
		depth int
	}
	stack := []frame{{x: x, y: y, depth: 0}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if fr.depth > maxDepth {
			return nil, &Error{Path: fr.path}
		}
		if reflect.DeepEqual(fr.x, fr.y) {
			continue
		}

		xObj, xIsObj := fr.x.(map[string]any)
		yObj, yIsObj := fr.y.(map[string]any)
		xArr, xIsArr := fr.x.([]any)
		yArr, yIsArr := fr.y.([]any)

		switch {
		case xIsObj && yIsObj:
			oneSided, shared := diffObjectKeys(fr.path, xObj, yObj)
			ops = append(ops, oneSided...)
			for _, key := range shared {
				stack = append(stack, frame{
					path: appendPath(fr.path, key), x: xObj[key], y: yObj[key], depth: fr.depth + 1,
				})
			}

		case xIsArr && yIsArr:
			arrOps, err := diffArray(fr.path, xArr, yArr, cellCap)
			if err != nil {
				return nil, err
			}
			ops = append(ops, arrOps...)

		default:
			ops = append(ops, patch.Operation{Op: patch.OpReplace, Path: pointer.Join(fr.path), Value: fr.y})
		}
	}

	return ops, nil
}

// diffObjectKeys returns the add/remove operations for keys present on
// only one side, and the sorted list of all shared keys, whether or not
// their values differ (left for the caller to push onto its own work
// stack).
func diffObjectKeys(path []string, x, y map[string]any) ([]patch.Operation, []string) {
	var ops []patch.Operation
	var shared []string

	removed := make([]string, 0)
	for key := range x {
		if _, ok := y[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	for _, key := range removed {
		ops = append(ops, patch.Operation{Op: patch.OpRemove, Path: pointer.Join(appendPath(path, key))})
	}

	added := make([]string, 0)
	for key := range y {
		if _, ok := x[key]; ok {
			shared = append(shared, key)
			continue
		}
		added = append(added, key)
	}
	sort.Strings(added)
	sort.Strings(shared)
	for _, key := range added {
		ops = append(ops, patch.Operation{Op: patch.OpAdd, Path: pointer.Join(appendPath(path, key)), Value: y[key]})
	}

	return ops, shared
}

func appendPath(path []string, step string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}
