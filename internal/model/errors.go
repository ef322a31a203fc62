package model

import "errors"

var (
	// ErrSchema reports a missing column or a type that an operation
	// cannot be applied to.
	ErrSchema = errors.New("schema error")
	// ErrPredicateParse reports a filter condition that is malformed or
	// references unknown columns.
	ErrPredicateParse = errors.New("predicate parse error")
	// ErrEmptyInput is returned when an execution receives no batches.
	ErrEmptyInput = errors.New("no input batches")
	// ErrAggregationWithoutGrouping is returned for a transformation that
	// aggregates but never groups.
	ErrAggregationWithoutGrouping = errors.New("aggregate instruction without group by")
	// ErrUnsupportedBackend is returned by the publishing layer for a
	// backend that is unknown or not configured.
	ErrUnsupportedBackend = errors.New("storage backend not supported")
	// ErrUnknownInstruction is returned when decoding an instruction,
	// aggregate or expression kind that does not exist.
	ErrUnknownInstruction = errors.New("unknown instruction")
)
