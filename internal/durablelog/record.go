package durablelog

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/google/uuid"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Record is a single decoded message entry.
type Record struct {
	MessageID uuid.UUID
	Timestamp int64 // ms since epoch
	Attrs     map[string]string
	Payload   []byte
}

// encodeRecord lays out a record as:
//
//	messageID(16B) | timestamp(8B BE) | varint(attrsLen) | attrsJSON | payload | crc32c
//
// adapted from the teacher's eventlog/record.go varint-header + CRC shape.
func encodeRecord(r Record) ([]byte, error) {
	attrsJSON, err := json.Marshal(r.Attrs)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 16+8+10+len(attrsJSON)+len(r.Payload)+4)
	out = append(out, r.MessageID[:]...)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(r.Timestamp))
	out = append(out, ts[:]...)

	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(attrsJSON)))
	out = append(out, tmp[:n]...)
	out = append(out, attrsJSON...)
	out = append(out, r.Payload...)

	crc := crc32.Checksum(out, castagnoli)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out, nil
}

// decodeRecord validates the checksum and unpacks a stored entry.
func decodeRecord(b []byte) (Record, bool) {
	if len(b) < 16+8+1+4 {
		return Record{}, false
	}
	body := b[:len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	if crc32.Checksum(body, castagnoli) != expect {
		return Record{}, false
	}

	var id uuid.UUID
	copy(id[:], b[:16])
	ts := int64(binary.BigEndian.Uint64(b[16:24]))

	rest := b[24 : len(b)-4]
	alen, n := binary.Uvarint(rest)
	if n <= 0 || int(n)+int(alen) > len(rest) {
		return Record{}, false
	}
	attrsJSON := rest[n : n+int(alen)]
	payload := rest[n+int(alen):]

	var attrs map[string]string
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return Record{}, false
		}
	}
	return Record{
		MessageID: id,
		Timestamp: ts,
		Attrs:     attrs,
		Payload:   append([]byte(nil), payload...),
	}, true
}
