package registers

import (
	"math"

	"queue-twin/models"
)

// Encode converts a snapshot into a full queue status block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s models.QueueSnapshot, seq uint16, critical bool) []uint16 {
	regs := make([]uint16, BlockSize)

	regs[RegQueueLength] = sat16(s.QueueLength)
	regs[RegAgentCount] = sat16(s.AgentCount)
	regs[RegArrivalRate] = sat16(s.ArrivalRate)
	regs[RegBreachProbability] = sat16(s.ProjectedBreachProbability)

	regs[RegCompletedHi], regs[RegCompletedLo] = split32(sat32(int64(s.CompletedCount)))
	regs[RegBreachesHi], regs[RegBreachesLo] = split32(sat32(int64(s.BreachCount)))

	var ts int64
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.Unix()
	}
	regs[RegTimestampHi], regs[RegTimestampLo] = split32(sat32(ts))

	regs[RegSequence] = seq
	if critical {
		regs[RegCritical] = 1
	}

	return regs
}

// Decode reads back the scalar fields of a block. It is the inverse of
// Encode for in-range values and is used by consumers and tests.
func Decode(regs []uint16) (s models.QueueSnapshot, seq uint16, critical bool, ok bool) {
	if len(regs) < BlockSize {
		return models.QueueSnapshot{}, 0, false, false
	}
	s.QueueLength = int(regs[RegQueueLength])
	s.AgentCount = int(regs[RegAgentCount])
	s.ArrivalRate = int(regs[RegArrivalRate])
	s.ProjectedBreachProbability = int(regs[RegBreachProbability])
	s.CompletedCount = int(join32(regs[RegCompletedHi], regs[RegCompletedLo]))
	s.BreachCount = int(join32(regs[RegBreachesHi], regs[RegBreachesLo]))
	return s, regs[RegSequence], regs[RegCritical] == 1, true
}

func sat16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(v)
	}
}

func sat32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}

func split32(v uint32) (hi, lo uint16) {
	return uint16(v >> 16), uint16(v)
}

func join32(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}
