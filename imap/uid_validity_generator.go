package imap

import (
	"fmt"
	"sync/atomic"
	"time"
)

// UIDValidityGenerator produces UIDVALIDITY values for mailboxes whose list file
// is created from scratch. A value must be strictly greater than prev so that
// clients holding UIDs from a discarded list notice the change.
type UIDValidityGenerator interface {
	Generate(prev UID) (UID, error)
}

// EpochUIDValidityGenerator derives values from the seconds elapsed since epochStart.
type EpochUIDValidityGenerator struct {
	epochStart time.Time
	lastUID    uint32
}

func NewEpochUIDValidityGenerator(epochStart time.Time) *EpochUIDValidityGenerator {
	return &EpochUIDValidityGenerator{
		epochStart: epochStart,
	}
}

func DefaultEpochUIDValidityGenerator() *EpochUIDValidityGenerator {
	return NewEpochUIDValidityGenerator(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
}

func (e *EpochUIDValidityGenerator) Generate(prev UID) (UID, error) {
	elapsed := time.Since(e.epochStart).Seconds()
	if elapsed < 0 || uint64(elapsed) > uint64(MaxUID) {
		return 0, fmt.Errorf("failed to generate uid validity, interval exceeded maximum capacity")
	}

	candidate := uint32(elapsed)

	// Two mailboxes recreated within the same second, or a list recreated after
	// a clock step backwards, must still get distinct, increasing values.
	for {
		last := atomic.LoadUint32(&e.lastUID)

		floor := last
		if uint32(prev) > floor {
			floor = uint32(prev)
		}

		next := candidate
		if next <= floor {
			if floor == uint32(MaxUID) {
				return 0, fmt.Errorf("failed to generate uid validity, interval exceeded maximum capacity")
			}

			next = floor + 1
		}

		if atomic.CompareAndSwapUint32(&e.lastUID, last, next) {
			return UID(next), nil
		}
	}
}

// IncrementalUIDValidityGenerator is a deterministic generator for tests.
type IncrementalUIDValidityGenerator struct {
	counter uint32
}

func NewIncrementalUIDValidityGenerator() *IncrementalUIDValidityGenerator {
	return &IncrementalUIDValidityGenerator{}
}

func (i *IncrementalUIDValidityGenerator) Generate(prev UID) (UID, error) {
	for {
		cur := atomic.LoadUint32(&i.counter)

		next := cur + 1
		if next <= uint32(prev) {
			next = uint32(prev) + 1
		}

		if atomic.CompareAndSwapUint32(&i.counter, cur, next) {
			return UID(next), nil
		}
	}
}

func (i *IncrementalUIDValidityGenerator) GetValue() UID {
	return UID(atomic.LoadUint32(&i.counter))
}
