package session

import (
	"fmt"
	stdnet "net"
	"testing"

	"github.com/l1jgo/simcore/internal/core/id"
	"github.com/l1jgo/simcore/internal/entity"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stateRecord struct {
	id          uint64
	kind        byte
	x, y        float32
	orientation byte
	skin        uint64
	health      uint64
	name        string
	action      string
}

func readEntityStates(r *packet.Reader) []stateRecord {
	n := int(r.ReadH())
	out := make([]stateRecord, 0, n)
	for range n {
		out = append(out, stateRecord{
			id:          r.ReadQ(),
			kind:        r.ReadC(),
			x:           r.ReadF(),
			y:           r.ReadF(),
			orientation: r.ReadC(),
			skin:        r.ReadQ(),
			health:      r.ReadQ(),
			name:        r.ReadS(),
			action:      r.ReadS(),
		})
	}
	return out
}

func crowd(n int) []entity.Snapshot {
	states := make([]entity.Snapshot, n)
	for i := range states {
		states[i] = entity.Snapshot{
			ID:          id.Forge[entity.Entity](uint64(i + 1)),
			Kind:        "invoked",
			Name:        fmt.Sprintf("slime-%d", i),
			Position:    entity.Vec2{X: float32(i), Y: 2},
			Orientation: entity.East,
			Skin:        40,
			Health:      5,
			Action:      "idle",
		}
	}
	return states
}

func TestEntityStatesShareOneFrame(t *testing.T) {
	cs, err := packet.NewCharset("big5")
	require.NoError(t, err)

	states := crowd(3)
	states[1].Kind = "player"
	states[1].Name = "妖精"
	frames := buildEntityStates(states, cs)
	require.Len(t, frames, 1)
	assert.Equal(t, packet.S_OPCODE_ENTITY_STATE, frames[0][0])

	r := packet.NewReader(frames[0], cs)
	got := readEntityStates(r)
	require.Len(t, got, 3)
	assert.Zero(t, r.Remaining())
	assert.Equal(t, stateRecord{
		id: 2, kind: kindPlayer, x: 1, y: 2, orientation: byte(entity.East),
		skin: 40, health: 5, name: "妖精", action: "idle",
	}, got[1])
	assert.Equal(t, kindInvoked, got[2].kind)

	assert.Empty(t, buildEntityStates(nil, cs))
}

func TestEntityStatesSplitAtFrameLimit(t *testing.T) {
	cs, err := packet.NewCharset("big5")
	require.NoError(t, err)

	frames := buildEntityStates(crowd(5000), cs)
	require.Greater(t, len(frames), 1)

	var ids []uint64
	for _, f := range frames {
		assert.LessOrEqual(t, len(f), net.MaxPayload)
		for _, st := range readEntityStates(packet.NewReader(f, cs)) {
			ids = append(ids, st.id)
		}
	}
	require.Len(t, ids, 5000)
	for i, v := range ids {
		assert.Equal(t, uint64(i+1), v, "order kept across frames")
	}
}

func TestCrowdedTickKeepsSession(t *testing.T) {
	cs, err := packet.NewCharset("big5")
	require.NoError(t, err)
	server, client := stdnet.Pipe()
	t.Cleanup(func() { client.Close() })
	sess := net.NewSession(server, 1, net.SessionOptions{OutQueueSize: 2}, zap.NewNop())
	t.Cleanup(sess.Close)

	s := &sink{sess: sess, charset: cs}
	s.EntityStates(crowd(100))

	select {
	case <-sess.Done():
		t.Fatal("session closed by a single tick")
	default:
	}
	assert.Len(t, sess.OutQueue, 1)
}
