package model

import "strings"

// Transformation is an ordered, immutable list of instructions. The zero
// value is the identity transformation.
//
// A Transformation never changes after construction and may be shared by
// concurrent executions.
type Transformation struct {
	instructions []Instruction
}

// NewTransformation copies instructions into a new Transformation.
func NewTransformation(instructions ...Instruction) Transformation {
	if len(instructions) == 0 {
		return Transformation{}
	}
	out := make([]Instruction, 0, len(instructions))
	for _, ins := range instructions {
		out = append(out, clone(ins))
	}
	return Transformation{instructions: out}
}

// Instructions returns a copy of the instruction list.
func (t Transformation) Instructions() []Instruction {
	out := make([]Instruction, 0, len(t.instructions))
	for _, ins := range t.instructions {
		out = append(out, clone(ins))
	}
	return out
}

func (t Transformation) Len() int { return len(t.instructions) }

// IsIdentity reports whether applying t leaves its input unchanged.
func (t Transformation) IsIdentity() bool { return len(t.instructions) == 0 }

func (t Transformation) String() string {
	if t.IsIdentity() {
		return "identity"
	}
	parts := make([]string, 0, len(t.instructions))
	for _, ins := range t.instructions {
		parts = append(parts, ins.String())
	}
	return strings.Join(parts, " -> ")
}
