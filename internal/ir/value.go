package ir

// Value identifies an SSA value: the result of an Instruction or a block
// parameter. The zero Value is reserved as invalid so a missing operand
// (an omitted optional, or a not-yet-materialized forward reference) can
// never alias a real value by accident.
type Value uint32

// ValueInvalid is the sentinel "no value" Value.
const ValueInvalid Value = 0

func (v Value) Valid() bool { return v != ValueInvalid }
