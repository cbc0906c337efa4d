package testutil

import (
	"encoding/binary"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDSequence hands out deterministic ObjectIDs for tests.
//
// The driver's primitive.NewObjectID mixes in the wall clock and a random
// process value, so pipelines and golden files built from it differ on
// every run. IDSequence encodes a counter instead: the first call to Next
// returns 000000000000000000000001.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type IDSequence struct {
	mu  sync.Mutex
	seq uint64
}

// NewIDSequence creates a sequence starting at 0.
func NewIDSequence() *IDSequence {
	return &IDSequence{}
}

// Next increments the counter and returns it as an ObjectID.
func (s *IDSequence) Next() primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return ObjectID(s.seq)
}

// NextHex is Next in its 24 character hex form, as written in requests.
func (s *IDSequence) NextHex() string {
	return s.Next().Hex()
}

// Current returns the counter without incrementing.
func (s *IDSequence) Current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset sets the counter back to 0.
func (s *IDSequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// ObjectID returns the ObjectID encoding n in its last eight bytes.
func ObjectID(n uint64) primitive.ObjectID {
	var id primitive.ObjectID
	binary.BigEndian.PutUint64(id[4:], n)
	return id
}
