package packet

// Client opcodes.
const (
	C_OPCODE_AUTH   byte = 0x01 // [Q player id][S token]
	C_OPCODE_WALK   byte = 0x02 // [C direction, 0xFF = stop]
	C_OPCODE_ATTACK byte = 0x03
	C_OPCODE_QUIT   byte = 0x04
)

// Server opcodes.
const (
	S_OPCODE_AUTH_OK        byte = 0x81 // [Q entity id][Q instance id]
	S_OPCODE_AUTH_FAIL      byte = 0x82 // [S reason]
	S_OPCODE_ENTITY_STATE   byte = 0x83 // [H count] + records, see session.buildEntityStates
	S_OPCODE_ENTITY_REMOVED byte = 0x84 // [Q entity id]
	S_OPCODE_ORDER_REFUSED  byte = 0x85 // [C client opcode][S reason]
)

// WalkStop is the C_OPCODE_WALK direction byte that stops walking.
const WalkStop byte = 0xFF
