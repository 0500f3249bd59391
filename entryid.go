package xstream

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryID is the "<ms>-<seq>" identifier the engine assigns on append.
type EntryID struct {
	Ms  uint64
	Seq uint64
}

// MinEntryID is the id that sorts before every appended entry.
var MinEntryID = EntryID{}

// ParseEntryID accepts "<ms>-<seq>" and the short form "<ms>" (seq 0).
func ParseEntryID(s string) (EntryID, error) {
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return EntryID{}, fmt.Errorf("%w: %q", ErrInvalidEntryID, s)
	}
	id := EntryID{Ms: ms}
	if hasSeq {
		seq, err := strconv.ParseUint(seqPart, 10, 64)
		if err != nil {
			return EntryID{}, fmt.Errorf("%w: %q", ErrInvalidEntryID, s)
		}
		id.Seq = seq
	}
	return id, nil
}

func (id EntryID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Compare returns -1, 0 or +1.
func (id EntryID) Compare(other EntryID) int {
	switch {
	case id.Ms < other.Ms:
		return -1
	case id.Ms > other.Ms:
		return 1
	case id.Seq < other.Seq:
		return -1
	case id.Seq > other.Seq:
		return 1
	}
	return 0
}

// Next is the smallest id strictly greater than id.
func (id EntryID) Next() EntryID {
	if id.Seq == ^uint64(0) {
		return EntryID{Ms: id.Ms + 1}
	}
	return EntryID{Ms: id.Ms, Seq: id.Seq + 1}
}
