package ir

// BlockID identifies a Block within a Function.
type BlockID uint32

// BlockParam is one block parameter: the backend-IR realization of a φ.
type BlockParam struct {
	Type  Type
	Value Value
}

// Block is one basic block of a Function. Blocks are created up front by
// the function translator's pass 3 (block creation and parameter
// binding); this package never invents blocks or parameters on its own,
// unlike a dynamic sparse-SSA builder would.
type Block struct {
	ID     BlockID
	Name   string
	Params []BlockParam

	Instructions []*Instruction

	// Preds is advisory, populated as branch instructions are inserted for Format's
	// benefit; code generation walks Instructions, not Preds.
	Preds []BlockID

	sealed bool
}

// Sealed reports whether Seal has been called for this block.
func (b *Block) Sealed() bool { return b.sealed }
