package nfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dnfs3/dnfs3/internal/logger"
	"github.com/dnfs3/dnfs3/internal/protocol/nfs/rpc"
)

// Portmap v2 procedure numbers (RFC 1833).
const (
	PortmapProcNull    = 0
	PortmapProcSet     = 1
	PortmapProcUnset   = 2
	PortmapProcGetPort = 3
	PortmapProcDump    = 4
)

// Portmap protocol identifiers, as carried in pmap2_mapping.prot.
const (
	PortmapProtoTCP = 6
	PortmapProtoUDP = 17
)

// PortmapMapping is one entry of the table GETPORT/DUMP answer against.
type PortmapMapping struct {
	Program  uint32
	Version  uint32
	Protocol uint32
	Port     uint32
}

// portmapTable describes the programs this server answers for. All three
// share the single TCP listener, so every entry carries the same port.
func portmapTable(port uint32) []PortmapMapping {
	return []PortmapMapping{
		{Program: rpc.ProgramPortmap, Version: 2, Protocol: PortmapProtoTCP, Port: port},
		{Program: rpc.ProgramNFS, Version: 3, Protocol: PortmapProtoTCP, Port: port},
		{Program: rpc.ProgramMount, Version: 3, Protocol: PortmapProtoTCP, Port: port},
	}
}

// HandlePortmapProcedure answers NULL, GETPORT and DUMP against the fixed
// table of programs this server itself exposes. SET/UNSET are accepted as
// no-ops: the table is fixed at startup, so a conforming client that always
// follows up with GETPORT never needs them to actually take effect.
// PORTMAP exists only so a client that probes rpcbind before mounting can
// discover the server; it is not required when the client is told the port
// explicitly.
//
// ok is false for any procedure number this server does not implement, so
// the caller can reply PROC_UNAVAIL instead of a malformed success reply.
func HandlePortmapProcedure(procedure uint32, data []byte, port uint32) (reply []byte, ok bool, err error) {
	switch procedure {
	case PortmapProcNull:
		logger.Debug("PORTMAP NULL")
		return []byte{}, true, nil

	case PortmapProcSet:
		logger.Debug("PORTMAP SET: accepted, no-op (table is fixed at startup)")
		return encodeBool(true), true, nil

	case PortmapProcUnset:
		logger.Debug("PORTMAP UNSET: accepted, no-op (table is fixed at startup)")
		return encodeBool(true), true, nil

	case PortmapProcGetPort:
		return handlePortmapGetPort(data, port)

	case PortmapProcDump:
		return handlePortmapDump(port)

	default:
		logger.Debug("Unknown PORTMAP procedure: %d", procedure)
		return nil, false, nil
	}
}

// encodeBool XDR-encodes a boolean as a 4-byte 0/1 value.
func encodeBool(v bool) []byte {
	buf := make([]byte, 4)
	if v {
		binary.BigEndian.PutUint32(buf, 1)
	}
	return buf
}

// struct mapping { u_long prog; u_long vers; u_long prot; u_long port; };
func handlePortmapGetPort(data []byte, port uint32) ([]byte, bool, error) {
	var req struct{ Program, Version, Protocol, Port uint32 }
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &req); err != nil {
		return nil, true, fmt.Errorf("decode GETPORT args: %w", err)
	}

	var resultPort uint32
	for _, m := range portmapTable(port) {
		if m.Program == req.Program && m.Version == req.Version && m.Protocol == req.Protocol {
			resultPort = m.Port
			break
		}
	}

	logger.Debug("PORTMAP GETPORT: prog=%d vers=%d prot=%d -> port=%d",
		req.Program, req.Version, req.Protocol, resultPort)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, resultPort); err != nil {
		return nil, true, fmt.Errorf("encode GETPORT reply: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DUMP replies with a pmaplist: a sequence of (value_follows=1, mapping)
// pairs terminated by value_follows=0, matching the teacher's WCC-list
// encoding style of a boolean discriminant ahead of each optional entry.
func handlePortmapDump(port uint32) ([]byte, bool, error) {
	mappings := portmapTable(port)
	logger.Debug("PORTMAP DUMP: %d entries", len(mappings))

	var buf bytes.Buffer
	for _, m := range mappings {
		if err := binary.Write(&buf, binary.BigEndian, uint32(1)); err != nil {
			return nil, true, fmt.Errorf("encode DUMP entry marker: %w", err)
		}
		fields := []uint32{m.Program, m.Version, m.Protocol, m.Port}
		for _, f := range fields {
			if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
				return nil, true, fmt.Errorf("encode DUMP entry: %w", err)
			}
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(0)); err != nil {
		return nil, true, fmt.Errorf("encode DUMP terminator: %w", err)
	}
	return buf.Bytes(), true, nil
}
