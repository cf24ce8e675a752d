package txn

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// putBytes writes a 4-byte big-endian length prefix followed by b, the same
// length-prefixing convention enc.EncryptedData.Bytes uses for its
// ciphertext so transaction envelopes can embed variable-length proof and
// ciphertext fields without ambiguity.
func putBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("txn: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("txn: read %d bytes: %w", n, err)
	}
	return out, nil
}

func readFixed(r *bytes.Reader, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("txn: read %d fixed bytes: %w", n, err)
	}
	return out, nil
}

func beUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func beUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
