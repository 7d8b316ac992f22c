package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// stateDigest hashes the tick, every agent's disease record and its cell.
// Equal digests across runs mean the runs are indistinguishable at the
// granularity the simulation reports.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(len(w.agents)))
	for i, a := range w.agents {
		st := w.pop.State(i)
		h.Write([]byte{byte(st.Status)})
		digestWriteU64(h, &tmp, st.ChangedTick)
		digestWriteU64(h, &tmp, st.Duration)
		c := w.cellOf(w.engine.Position(a.Handle))
		digestWriteI64(h, &tmp, int64(c.X))
		digestWriteI64(h, &tmp, int64(c.Y))
		digestWriteU64(h, &tmp, uint64(a.Dest))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}
