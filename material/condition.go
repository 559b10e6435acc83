package material

import "log"

// Cond enumerates leaf condition kinds.
type Cond uint8

const (
	CondNone Cond = iota
	CondDstHasMaterial
	CondDstLacksMaterial
	CondEvalColliding
	CondEvalNotColliding
	CondSrcYoungerThan
	CondSrcOlderThan
	CondDstYoungerThan
	CondDstOlderThan
	CondSameNode
	CondDifferentNode
)

// Op enumerates combinator operators for branch nodes.
type Op uint8

const (
	OpLeaf Op = iota
	OpAnd
	OpOr
	OpXor
)

// ConditionNode is one node of a condition tree: either a leaf holding a
// condition kind plus its operands, or a branch holding an operator and two
// children. The parser guarantees branches always have two non-nil children
// and leaves carry exactly the operands their kind requires.
type ConditionNode struct {
	Op    Op
	Left  *ConditionNode
	Right *ConditionNode

	Cond  Cond
	Value uint32    // duration operand, in sim milliseconds
	Mat   *Material // material operand
}

// condOperands maps each condition kind to its required operand count and
// whether the operand is a material reference.
func condOperands(c Cond) (argc int, isMaterial bool) {
	switch c {
	case CondDstHasMaterial, CondDstLacksMaterial:
		return 1, true
	case CondSrcYoungerThan, CondSrcOlderThan, CondDstYoungerThan, CondDstOlderThan:
		return 1, false
	default:
		return 0, false
	}
}

// Eval evaluates the tree against the two parts and the current contact
// context. src is the part owning the component under evaluation; dst is
// the one it hit. eval_colliding observes context state set by components
// that ran earlier in the same contact, which is what lets later components
// react to earlier ones.
func (n *ConditionNode) Eval(src, dst Body, ctx *Context, now uint64) bool {
	if n == nil {
		return true
	}
	switch n.Op {
	case OpAnd:
		return n.Left.Eval(src, dst, ctx, now) && n.Right.Eval(src, dst, ctx, now)
	case OpOr:
		return n.Left.Eval(src, dst, ctx, now) || n.Right.Eval(src, dst, ctx, now)
	case OpXor:
		return n.Left.Eval(src, dst, ctx, now) != n.Right.Eval(src, dst, ctx, now)
	}
	switch n.Cond {
	case CondDstHasMaterial:
		return dst.HasMaterial(n.Mat)
	case CondDstLacksMaterial:
		return !dst.HasMaterial(n.Mat)
	case CondEvalColliding:
		return ctx.Collide
	case CondEvalNotColliding:
		return !ctx.Collide
	case CondSrcYoungerThan:
		return ageOf(src, now) < uint64(n.Value)
	case CondSrcOlderThan:
		return ageOf(src, now) > uint64(n.Value)
	case CondDstYoungerThan:
		return ageOf(dst, now) < uint64(n.Value)
	case CondDstOlderThan:
		return ageOf(dst, now) > uint64(n.Value)
	case CondSameNode:
		return src.NodeID() == dst.NodeID()
	case CondDifferentNode:
		return src.NodeID() != dst.NodeID()
	}
	// Construction should have rejected this; report once and fail the
	// condition rather than guessing.
	warnOnce(&warnedCond, uint8(n.Cond), "material: unhandled condition kind %d")
	return false
}

func ageOf(b Body, now uint64) uint64 {
	born := b.BornAt()
	if now < born {
		return 0
	}
	return now - born
}

var (
	warnedCond   [256]bool
	warnedAction [256]bool
)

// warnOnce logs one line per unknown tag value. Reaching here means a
// construction-time contract was violated; production keeps going.
func warnOnce(set *[256]bool, tag uint8, format string) {
	if set[tag] {
		return
	}
	set[tag] = true
	log.Printf(format, tag)
}
