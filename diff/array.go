package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/luoyjx/jsoncrdt/patch"
	"github.com/luoyjx/jsoncrdt/pointer"
)

// diffArray produces the edit script transforming x into y as a
// removes-then-adds patch anchored at path, using the classic O(n*m)
// LCS dynamic-programming table to find the longest run of elements
// that can stay in place. When the table would exceed cellCap cells,
// it falls back to a single atomic replace of the whole array (spec
// §5's resource limit on the diff engine's LCS table).
func diffArray(path []string, x, y []any, cellCap int) ([]patch.Operation, error) {
	n, m := len(x), len(y)

	if cellCap > 0 && n*m > cellCap {
		return []patch.Operation{{Op: patch.OpReplace, Path: pointer.Join(path), Value: y}}, nil
	}

	xTok, err := tokenize(x)
	if err != nil {
		return nil, err
	}
	yTok, err := tokenize(y)
	if err != nil {
		return nil, err
	}

	keepX, keepY := lcsKeep(xTok, yTok)

	var ops []patch.Operation
	for i := n - 1; i >= 0; i-- {
		if !keepX[i] {
			ops = append(ops, patch.Operation{
				Op: patch.OpRemove, Path: pointer.Join(appendPath(path, strconv.Itoa(i))),
			})
		}
	}
	for j := 0; j < m; j++ {
		if !keepY[j] {
			ops = append(ops, patch.Operation{
				Op: patch.OpAdd, Path: pointer.Join(appendPath(path, strconv.Itoa(j))), Value: y[j],
			})
		}
	}
	return ops, nil
}

// lcsKeep builds the standard longest-common-subsequence table over
// a/b and backtracks it to mark which indices on each side belong to
// the LCS (and so can stay in place rather than being removed/added).
func lcsKeep(a, b []string) ([]bool, []bool) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	keepA := make([]bool, n)
	keepB := make([]bool, m)
	i, j := n, m
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			keepA[i-1] = true
			keepB[j-1] = true
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return keepA, keepB
}

// tokenize renders each element as a canonical string for LCS
// comparison. Marshaling to JSON gives two structurally equal elements
// (object key order aside — encoding/json sorts map keys) the same
// token regardless of underlying Go representation.
func tokenize(arr []any) ([]string, error) {
	out := make([]string, len(arr))
	for i, v := range arr {
		b, err := json.Marshal(v)
		if err != nil {
			// A value json.Marshal refuses (e.g. a non-finite float
			// produced by a caller bypassing JSON text) still needs a
			// stable, collision-resistant token to compare by.
			out[i] = reflect.TypeOf(v).String() + ":" + fmt.Sprintf("%#v", v)
			continue
		}
		out[i] = string(b)
	}
	return out, nil
}
