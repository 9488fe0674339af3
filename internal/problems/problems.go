package problems

import (
	"fmt"
	"math/rand/v2"
)

// Operand bounds are half-open: A in [MinA, MaxA), B in [MinB, MaxB).
const (
	MinA = 1
	MaxA = 5
	MinB = 0
	MaxB = 5
)

type Op string

const (
	OpAdd      = Op("+")
	OpSubtract = Op("-")
	OpMultiply = Op("X")
)

var ops = []Op{OpAdd, OpSubtract, OpMultiply}

type Problem struct {
	Prompt string
	Answer int
	Left   int
	Right  int
	Op     Op
}

// Generate returns a new problem drawn from the process-wide random source.
func Generate() Problem {
	a := MinA + rand.IntN(MaxA-MinA)
	b := MinB + rand.IntN(MaxB-MinB)
	return Build(a, b, ops[rand.IntN(len(ops))])
}

// Build renders a problem for the given operands. Subtraction operands are
// swapped when needed so the answer is never negative.
func Build(a, b int, op Op) Problem {
	p := Problem{Left: a, Right: b, Op: op}
	switch op {
	case OpSubtract:
		if a < b {
			p.Left, p.Right = b, a
		}
		p.Answer = p.Left - p.Right
	case OpMultiply:
		p.Answer = a * b
	default:
		p.Op = OpAdd
		p.Answer = a + b
	}
	p.Prompt = fmt.Sprintf("%d %s %d", p.Left, p.Op, p.Right)
	return p
}

// Next generates a problem that differs from prev in prompt or answer.
func Next(prev Problem) Problem {
	for range 8 {
		p := Generate()
		if p.Prompt != prev.Prompt {
			return p
		}
	}
	return Generate()
}
