package codec

import (
	"encoding/binary"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// framer wraps packets in a byte stream the decoder's input format can
// parse. header is written once, ahead of the first packet.
type framer interface {
	header() []byte
	frame(pkt *media.Packet) []byte
}

const (
	ivfHeaderSize      = 32
	ivfFrameHeaderSize = 12
)

// ivf frames packets as an IVF file. Timestamps count packets since the
// decoder output ignores them.
type ivf struct {
	fourcc        string
	width, height int
	n             uint64
}

func newIVF(fourcc string, w, h int) *ivf {
	return &ivf{fourcc: fourcc, width: w, height: h}
}

func (v *ivf) header() []byte {
	b := make([]byte, ivfHeaderSize)
	copy(b[0:4], "DKIF")
	binary.LittleEndian.PutUint16(b[4:], 0)
	binary.LittleEndian.PutUint16(b[6:], ivfHeaderSize)
	copy(b[8:12], v.fourcc)
	binary.LittleEndian.PutUint16(b[12:], uint16(v.width))
	binary.LittleEndian.PutUint16(b[14:], uint16(v.height))
	binary.LittleEndian.PutUint32(b[16:], 1000) // time base denominator
	binary.LittleEndian.PutUint32(b[20:], 1)    // numerator
	// Frame count (b[24:28]) is unknown on a pipe and left zero.
	return b
}

func (v *ivf) frame(pkt *media.Packet) []byte {
	b := make([]byte, ivfFrameHeaderSize+len(pkt.Data))
	binary.LittleEndian.PutUint32(b[0:], uint32(len(pkt.Data)))
	binary.LittleEndian.PutUint64(b[4:], v.n)
	copy(b[ivfFrameHeaderSize:], pkt.Data)
	v.n++
	return b
}
