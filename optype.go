package xroute

import (
	"fmt"
	"strings"
)

// OperationType identifies a route operation. Its numeric value is its
// position in the execution order.
type OperationType uint8

const (
	MessageCreation OperationType = iota + 1
	SenderSelector
	BodySelector
	ContextSelector
	BodyTransform
	ContextTransform
	CarryForwardContext
)

// ExecutionOrderVersion identifies the order below. Deployed routes depend on
// it: any reordering must bump the version.
const ExecutionOrderVersion = 1

var executionOrder = [...]OperationType{
	MessageCreation,
	SenderSelector,
	BodySelector,
	ContextSelector,
	BodyTransform,
	ContextTransform,
	CarryForwardContext,
}

// ExecutionOrder returns every operation type in the order a pipeline runs
// them, regardless of how a route lists its operations.
func ExecutionOrder() []OperationType {
	out := make([]OperationType, len(executionOrder))
	copy(out, executionOrder[:])
	return out
}

var operationTypeNames = map[OperationType]string{
	MessageCreation:     "MessageCreation",
	SenderSelector:      "SenderSelector",
	BodySelector:        "BodySelector",
	ContextSelector:     "ContextSelector",
	BodyTransform:       "BodyTransform",
	ContextTransform:    "ContextTransform",
	CarryForwardContext: "CarryForwardContext",
}

func (t OperationType) String() string {
	if n, ok := operationTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("OperationType(%d)", uint8(t))
}

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	_, ok := operationTypeNames[t]
	return ok
}

// ParseOperationType matches an operation type name case-insensitively.
func ParseOperationType(s string) (OperationType, error) {
	s = strings.TrimSpace(s)
	for t, n := range operationTypeNames {
		if strings.EqualFold(n, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}
