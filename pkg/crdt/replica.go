package crdt

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
	"sync"

	"github.com/inkwell-labs/notesync/pkg/codec"
	"github.com/inkwell-labs/notesync/pkg/errs"
)

// wireOp is the gob-serializable projection of Op; Kind is stored as a
// plain uint8 so the encoding is stable across the unexported opKind type.
type wireOp struct {
	ActorID   string
	Seq       uint64
	OriginID  string
	OriginSeq uint64
	Kind      uint8
	Text      string
	Tag       string
	Attrs     map[string]string
	Deleted   bool
}

// Replica is a single note's CRDT document: an RGA-ordered operation log
// plus the bookkeeping needed to apply remote updates idempotently and to
// compute diffs against an arbitrary state vector.
//
// Replica is safe for concurrent use: every exported method takes the
// replica's own mutex.
type Replica struct {
	mu      sync.Mutex
	actor   string
	nextSeq uint64
	ops     []*Op
	seen    map[OpID]bool
	vector  map[string]uint64
}

// NewReplica creates an empty replica. actor identifies this device/process
// for the OpIDs it originates.
func NewReplica(actor string) *Replica {
	return &Replica{
		actor:  actor,
		seen:   make(map[OpID]bool),
		vector: make(map[string]uint64),
	}
}

// indexOf returns the slice position of the op with the given ID, or -1 if
// id is the zero OpID (start-of-document) or not present.
func (r *Replica) indexOf(id OpID) int {
	if id == zeroOpID {
		return -1
	}
	for i, op := range r.ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}

// integrate inserts op into document order following RGA placement rules,
// and is a no-op if the op's ID has already been seen (idempotence).
func (r *Replica) integrate(op *Op) {
	if r.seen[op.ID] {
		return
	}
	r.seen[op.ID] = true
	if op.ID.Seq > r.vector[op.ID.Actor] {
		r.vector[op.ID.Actor] = op.ID.Seq
	}
	if op.ID.Actor == r.actor && op.ID.Seq > r.nextSeq {
		r.nextSeq = op.ID.Seq
	}

	originPos := r.indexOf(op.OriginID)
	insertAt := originPos + 1

	for insertAt < len(r.ops) {
		next := r.ops[insertAt]
		nextOriginPos := r.indexOf(next.OriginID)
		if nextOriginPos < originPos {
			break
		}
		if nextOriginPos == originPos {
			if op.ID.Less(next.ID) {
				insertAt++
				continue
			}
			break
		}
		insertAt++
	}

	r.ops = append(r.ops, nil)
	copy(r.ops[insertAt+1:], r.ops[insertAt:])
	r.ops[insertAt] = op
}

// AppendText creates and integrates a new text op at the end of the
// document (anchored on the current last op, or the document start if
// empty) and returns the op so callers can thread further inserts off it.
func (r *Replica) AppendText(text string) *Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	origin := zeroOpID
	if len(r.ops) > 0 {
		origin = r.ops[len(r.ops)-1].ID
	}
	r.nextSeq++
	op := textOp(OpID{Actor: r.actor, Seq: r.nextSeq}, origin, text)
	r.integrate(op)
	return op
}

// AppendElement creates and integrates a new element marker, used when
// seeding block/inline structure from HTML.
func (r *Replica) AppendElement(tag string, attrs map[string]string) *Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	origin := zeroOpID
	if len(r.ops) > 0 {
		origin = r.ops[len(r.ops)-1].ID
	}
	r.nextSeq++
	op := elementOp(OpID{Actor: r.actor, Seq: r.nextSeq}, origin, tag, attrs)
	r.integrate(op)
	return op
}

// Tombstone marks all ops in [fromID, toID] (inclusive, document order) as
// deleted without physically removing them, per the CRDT's tombstone
// handling: deletion is content-only and never participates in vector
// bookkeeping beyond the Deleted flag.
func (r *Replica) Tombstone(fromID, toID OpID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.indexOf(fromID)
	to := r.indexOf(toID)
	if from == -1 || to == -1 || from > to {
		return
	}
	for i := from; i <= to; i++ {
		r.ops[i].Deleted = true
	}
}

// Has reports whether the replica holds any ops. This differs from
// Manager.Has, which reports true for any replica held in memory, empty or
// not.
func (r *Replica) Has() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops) > 0
}

// OpCount returns the number of operations currently in the log, tombstoned
// or not. Used for metrics reporting only.
func (r *Replica) OpCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}

// State encodes the full op log.
func (r *Replica) State() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return encodeOps(r.ops)
}

// StateVector encodes the actor -> highest-seq-seen map.
func (r *Replica) StateVector() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return encodeVector(r.vector)
}

// DiffSince returns the encoded subset of ops whose sequence number exceeds
// the caller's recorded high-water mark for that op's actor. An actor
// entirely absent from vector contributes all of its ops, which is what
// makes diff_since(unknown vector) equivalent to the full state.
func (r *Replica) DiffSince(vector map[string]uint64) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var diff []*Op
	for _, op := range r.ops {
		if op.ID.Seq > vector[op.ID.Actor] {
			diff = append(diff, op)
		}
	}
	return encodeOps(diff)
}

// Load merges a previously-encoded op log into the replica, e.g.
// when restoring from local persistence. Already-seen ops are naturally
// skipped by integrate, so loading into an already-populated replica is
// safe and idempotent.
func (r *Replica) Load(state []byte) error {
	ops, err := decodeOps(state)
	if err != nil {
		return errs.Decode("crdt.load", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		r.integrate(op)
	}
	return nil
}

// ApplyRemote merges an encoded update (as produced by DiffSince or State)
// into the replica. Re-applying the same update, or one whose ops are a
// subset of ops already seen, is a no-op: this is the idempotence
// invariant the sync coordinator relies on when retrying failed pushes.
func (r *Replica) ApplyRemote(update []byte) error {
	ops, err := decodeOps(update)
	if err != nil {
		return errs.Decode("crdt.apply_remote", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range ops {
		r.integrate(op)
	}
	return nil
}

// TextSnapshot renders the current document order into a plain string,
// skipping tombstoned runs and treating recognized block tags as line
// breaks. This is intentionally approximate, mirroring the lossy nature of
// the original HTML seeding.
func (r *Replica) TextSnapshot() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for _, op := range r.ops {
		if op.Deleted {
			continue
		}
		switch op.Kind {
		case opText:
			b.WriteString(op.Text)
		case opElement:
			if codec.IsBlockTag(op.Tag) && b.Len() > 0 {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}

// SeedFromHTML flattens parsed HTML into the replica's op log in document
// order, anchoring each new op on the previous one. Intended for use only
// on a replica that has not yet been populated; seeding an existing replica
// appends after its current content.
func (r *Replica) SeedFromHTML(nodes []codec.SeedNode) {
	for _, n := range nodes {
		r.seedNode(n)
	}
}

func (r *Replica) seedNode(n codec.SeedNode) {
	switch n.Kind {
	case "text":
		r.AppendText(n.Text)
	case "element":
		r.AppendElement(n.Tag, n.Attrs)
		for _, c := range n.Children {
			r.seedNode(c)
		}
	}
}

// EmptyStateFloor is the byte length of a freshly created replica's encoded
// state. An empty op log still gob-encodes to a non-zero marker, so callers
// deciding whether a state is worth transmitting must compare its length
// against this floor rather than against zero.
var EmptyStateFloor = func() int {
	n, _ := encodeOps(nil)
	return len(n)
}()

func encodeOps(ops []*Op) ([]byte, error) {
	wire := make([]wireOp, 0, len(ops))
	for _, op := range ops {
		wire = append(wire, toWire(op))
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, fmt.Errorf("crdt: encode ops: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeOps(data []byte) ([]*Op, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var wire []wireOp
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return nil, fmt.Errorf("crdt: decode ops: %w", err)
	}
	ops := make([]*Op, 0, len(wire))
	for _, w := range wire {
		ops = append(ops, fromWire(w))
	}
	return ops, nil
}

func encodeVector(vector map[string]uint64) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vector); err != nil {
		return nil, fmt.Errorf("crdt: encode state vector: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeVector decodes a state vector previously produced by StateVector.
// An empty/nil input decodes to an empty vector, matching diff_since's
// "unknown vector means full state" behavior.
func DecodeVector(data []byte) (map[string]uint64, error) {
	if len(data) == 0 {
		return map[string]uint64{}, nil
	}
	vector := make(map[string]uint64)
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vector); err != nil {
		return nil, fmt.Errorf("crdt: decode state vector: %w", err)
	}
	return vector, nil
}

func toWire(op *Op) wireOp {
	return wireOp{
		ActorID:   op.ID.Actor,
		Seq:       op.ID.Seq,
		OriginID:  op.OriginID.Actor,
		OriginSeq: op.OriginID.Seq,
		Kind:      uint8(op.Kind),
		Text:      op.Text,
		Tag:       op.Tag,
		Attrs:     op.Attrs,
		Deleted:   op.Deleted,
	}
}

func fromWire(w wireOp) *Op {
	return &Op{
		ID:       OpID{Actor: w.ActorID, Seq: w.Seq},
		OriginID: OpID{Actor: w.OriginID, Seq: w.OriginSeq},
		Kind:     opKind(w.Kind),
		Text:     w.Text,
		Tag:      w.Tag,
		Attrs:    w.Attrs,
		Deleted:  w.Deleted,
	}
}
