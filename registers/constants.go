package registers

// Queue status block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// BlockSize is the fixed number of holding registers written per snapshot.
const BlockSize = 16

// ---- REGISTER INDICES ----

// RegQueueLength holds the number of waiting cases (saturates at 65535).
const RegQueueLength = 0

// RegAgentCount holds the agent count applied on the tick.
const RegAgentCount = 1

// RegArrivalRate holds the nominal arrival rate in cases per hour.
const RegArrivalRate = 2

// RegBreachProbability holds the projected breach probability in percent.
const RegBreachProbability = 3

// RegCompletedHi and RegCompletedLo hold the cumulative completions as a big-endian uint32.
const (
	RegCompletedHi = 4
	RegCompletedLo = 5
)

// RegBreachesHi and RegBreachesLo hold the cumulative breaches as a big-endian uint32.
const (
	RegBreachesHi = 6
	RegBreachesLo = 7
)

// RegTimestampHi and RegTimestampLo hold the snapshot time in Unix seconds as a big-endian uint32.
const (
	RegTimestampHi = 8
	RegTimestampLo = 9
)

// RegSequence holds a wrapping counter incremented on every export.
const RegSequence = 10

// RegCritical is 1 when the breach probability exceeds the critical threshold.
const RegCritical = 11

// ---- RESERVED RANGE ----

// Registers 12-15 are reserved and always written as zero.
const (
	RegReservedStart = 12
	RegReservedEnd   = 15
)
