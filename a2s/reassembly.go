package a2s

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"hash/crc32"
	"io"
)

const goldSourceMaxAppID = 200

// compressionInfo is populated from fragment 0 when the Source-path
// compression bit is set.
type compressionInfo struct {
	uncompressedSize int32
	crc32            uint32
}

// reassembly is the per-endpoint context that exists only while a
// multi-packet response is in progress; see spec.md §3.
type reassembly struct {
	packetTotal int
	have        int
	fragments   [][]byte
	compression *compressionInfo
}

// ingestFragment folds one fragment's raw post-(-2-prefix) bytes into the
// endpoint's in-progress reassembly (*rs), creating the context from the
// first fragment seen, whatever its id. knownAppID selects the GoldSource vs Source header layout
// per spec.md §4.3 (0 means "unknown", which takes the Source path). It
// returns the combined, decompressed-if-needed payload once every fragment
// has arrived, or (nil, false, nil) if more fragments are still
// outstanding.
func ingestFragment(rs **reassembly, data []byte, knownAppID uint16, protocolVersion uint8) ([]byte, bool, error) {
	r := newReader(data)

	requestID, err := r.readU32()
	if err != nil {
		return nil, false, fmt.Errorf("a2s: reassembly header: %w", err)
	}

	var packetTotal, packetID int
	var compressed bool

	if knownAppID != 0 && knownAppID < goldSourceMaxAppID {
		// GoldSource path: one byte, packetId in the upper nibble,
		// packetTotal in the lower nibble.
		b, err := r.readU8()
		if err != nil {
			return nil, false, fmt.Errorf("a2s: goldsource fragment header: %w", err)
		}
		packetID = int(b >> 4)
		packetTotal = int(b & 0x0F)
	} else {
		// Source path.
		compressed = requestID&0x80 != 0

		total, err := r.readU8()
		if err != nil {
			return nil, false, fmt.Errorf("a2s: source fragment header: %w", err)
		}
		id, err := r.readU8()
		if err != nil {
			return nil, false, fmt.Errorf("a2s: source fragment header: %w", err)
		}
		packetTotal = int(total)
		packetID = int(id)

		if !(protocolVersion == 7 && legacyNoPacketSizeAppIDs[knownAppID]) {
			if _, err := r.readI16(); err != nil { // packetSize: read, never used.
				return nil, false, fmt.Errorf("a2s: source fragment packet size: %w", err)
			}
		}
	}

	if packetTotal <= 0 {
		return nil, false, fmt.Errorf("a2s: reassembly: non-positive packet total")
	}

	if *rs == nil {
		*rs = &reassembly{
			packetTotal: packetTotal,
			fragments:   make([][]byte, packetTotal),
		}
	}
	ctx := *rs

	if packetID < 0 || packetID >= len(ctx.fragments) {
		return nil, false, fmt.Errorf("a2s: reassembly: packet id %d out of range [0,%d)", packetID, len(ctx.fragments))
	}

	if packetID == 0 {
		if compressed {
			uncompressedSize, err := r.readI32()
			if err != nil {
				return nil, false, fmt.Errorf("a2s: reassembly: compression header: %w", err)
			}
			crc, err := r.readU32()
			if err != nil {
				return nil, false, fmt.Errorf("a2s: reassembly: compression header: %w", err)
			}
			if uncompressedSize < 0 {
				return nil, false, fmt.Errorf("a2s: reassembly: negative uncompressed size %d", uncompressedSize)
			}
			ctx.compression = &compressionInfo{uncompressedSize: uncompressedSize, crc32: crc}
		}
		// The inner simple-framing prefix re-read by the dispatcher once
		// reassembly completes lives here; it is not part of the stored
		// fragment body.
		if err := r.skip(4); err != nil {
			return nil, false, fmt.Errorf("a2s: reassembly: inner prefix: %w", err)
		}
	}

	if ctx.fragments[packetID] == nil {
		ctx.fragments[packetID] = append([]byte(nil), data[r.pos:]...)
		ctx.have++
	}

	if ctx.have < ctx.packetTotal {
		return nil, false, nil
	}

	var combined bytes.Buffer
	for _, frag := range ctx.fragments {
		combined.Write(frag)
	}
	*rs = nil

	if ctx.compression == nil {
		return combined.Bytes(), true, nil
	}

	decompressed, err := decompress(combined.Bytes(), ctx.compression)
	if err != nil {
		return nil, false, err
	}
	return decompressed, true, nil
}

func decompress(compressed []byte, info *compressionInfo) ([]byte, error) {
	zr := bzip2.NewReader(bytes.NewReader(compressed))
	out := make([]byte, info.uncompressedSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("a2s: bzip2 decompress: %w", err)
	}
	if crc32.ChecksumIEEE(out) != info.crc32 {
		return nil, ErrChecksum
	}
	return out, nil
}
