package node

import "github.com/luoyjx/jsoncrdt/dot"

func d(actor string, ctr uint64) dot.Dot {
	return dot.Dot{Actor: actor, Counter: ctr}
}
