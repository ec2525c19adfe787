package core

import "errors"

var (
	ErrUnknownRule        = errors.New("unknown timing rule")
	ErrUnknownSpikeKind   = errors.New("unknown spike kind")
	ErrRegionTooShort     = errors.New("region data too short")
	ErrTableSize          = errors.New("lookup table has wrong size")
	ErrAccumulatorRange   = errors.New("accumulator bounds do not fit the synaptic word")
	ErrInvalidBounds      = errors.New("accumulator depression bound must be below potentiation bound")
	ErrUnknownSynapseType = errors.New("unknown synapse type")
	ErrNonMonotonicTime   = errors.New("spike time precedes last event of the same source")
	ErrNeuronOutOfRange   = errors.New("neuron index out of range")
	ErrBudgetExceeded     = errors.New("core memory budget exceeded")
	ErrCoreNotFound       = errors.New("core not found")
	ErrRunNotFound        = errors.New("run not found")
	ErrPersistenceFailed  = errors.New("failed to persist snapshot")
	ErrLoadFailed         = errors.New("failed to load snapshot")
)
