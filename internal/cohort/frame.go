// Package cohort implements the coordinator/worker transport for one run:
// workers join the coordinator over TCP, receive the serialized cluster
// config, synchronize on a barrier, and send back their node results.
// Every frame is a 4-byte big-endian length prefix, a one-byte message
// type, and a payload carrying an internal/wire record.
package cohort

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/pkg/errors"
)

type msgType byte

const (
	msgHello  msgType = 1 // worker -> coordinator: payload is the hostname
	msgConfig msgType = 2 // coordinator -> worker: payload is the config record
	msgReady  msgType = 3 // worker -> coordinator: config decoded, at barrier
	msgGo     msgType = 4 // coordinator -> worker: barrier released
	msgResult msgType = 5 // worker -> coordinator: payload is the result record
	msgError  msgType = 6 // either direction: payload is a diagnostic
)

// maxFrameSize bounds a single frame; config and result records are far
// smaller, so anything larger is a protocol violation.
const maxFrameSize = 16 << 20

func writeFrame(conn net.Conn, t msgType, payload []byte) error {
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)+1))
	header[4] = byte(t)

	if _, err := conn.Write(header); err != nil {
		return errors.Wrap(err, "failed to write frame header")
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return errors.Wrap(err, "failed to write frame payload")
		}
	}
	return nil
}

func readFrame(conn net.Conn) (msgType, []byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame length")
	}
	length := binary.BigEndian.Uint32(header)
	if length == 0 || length > maxFrameSize {
		return 0, nil, errors.Errorf("invalid frame length %d", length)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return 0, nil, errors.Wrap(err, "failed to read frame body")
	}
	return msgType(body[0]), body[1:], nil
}
