package session

import (
	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/game"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
)

// Entity kinds on the wire.
const (
	kindPlayer  byte = 0
	kindInvoked byte = 1
)

func buildAuthOK(loc game.Location, cs *packet.Charset) []byte {
	w := packet.NewWriter(packet.S_OPCODE_AUTH_OK, cs)
	w.WriteQ(loc.Entity.Uint64())
	w.WriteQ(loc.Instance.Uint64())
	return w.Bytes()
}

func buildAuthFail(reason string, cs *packet.Charset) []byte {
	w := packet.NewWriter(packet.S_OPCODE_AUTH_FAIL, cs)
	w.WriteS(reason)
	return w.Bytes()
}

func buildOrderRefused(opcode byte, reason string, cs *packet.Charset) []byte {
	w := packet.NewWriter(packet.S_OPCODE_ORDER_REFUSED, cs)
	w.WriteC(opcode)
	w.WriteS(reason)
	return w.Bytes()
}

// buildEntityStates packs states into as few frames as fit the frame size.
// Frame layout: [H count] followed by count records of
// [Q id][C kind][F x][F y][C orientation][Q skin][Q pv][S name][S action]
func buildEntityStates(states []entity.Snapshot, cs *packet.Charset) [][]byte {
	var frames [][]byte
	for len(states) > 0 {
		size := 3 // opcode and count
		var records [][]byte
		for _, st := range states {
			rec := entityRecord(st, cs)
			if len(records) > 0 && size+len(rec) > net.MaxPayload {
				break
			}
			records = append(records, rec)
			size += len(rec)
		}
		states = states[len(records):]

		w := packet.NewWriter(packet.S_OPCODE_ENTITY_STATE, cs)
		w.WriteH(uint16(len(records)))
		for _, rec := range records {
			w.WriteBytes(rec)
		}
		frames = append(frames, w.Bytes())
	}
	return frames
}

func entityRecord(s entity.Snapshot, cs *packet.Charset) []byte {
	w := packet.NewRecordWriter(cs)
	w.WriteQ(s.ID.Uint64())
	if s.Kind == "player" {
		w.WriteC(kindPlayer)
	} else {
		w.WriteC(kindInvoked)
	}
	w.WriteF(s.Position.X)
	w.WriteF(s.Position.Y)
	w.WriteC(byte(s.Orientation))
	w.WriteQ(s.Skin)
	w.WriteQ(s.Health)
	w.WriteS(s.Name)
	w.WriteS(s.Action)
	return w.Bytes()
}

func buildEntityRemoved(eid id.ID[entity.Entity], cs *packet.Charset) []byte {
	w := packet.NewWriter(packet.S_OPCODE_ENTITY_REMOVED, cs)
	w.WriteQ(eid.Uint64())
	return w.Bytes()
}
