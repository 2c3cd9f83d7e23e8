package container

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astits"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// packetReader yields packets of a running remux.
type packetReader interface {
	next() (*media.Packet, error)
	close()
}

func startReader(ctx context.Context, ffmpegPath, path string, plan remuxPlan) (packetReader, error) {
	proc, stdout, err := startRemux(ctx, ffmpegPath, remuxArgs(path, plan))
	if err != nil {
		return nil, err
	}
	if plan.transport == TransportMatroska {
		return newMKVDemuxer(proc, stdout, plan.order()), nil
	}
	return newTSDemuxer(ctx, proc, stdout, plan.order()), nil
}

// tsDemuxer reads PES packets out of an MPEG-TS remux with astits.
type tsDemuxer struct {
	proc  *remux
	dmx   *astits.Demuxer
	order []int
	pids  map[uint16]int
	done  bool
}

func newTSDemuxer(ctx context.Context, proc *remux, r io.Reader, order []int) *tsDemuxer {
	return &tsDemuxer{
		proc:  proc,
		dmx:   astits.NewDemuxer(ctx, r),
		order: order,
		pids:  make(map[uint16]int, len(order)),
	}
}

func (d *tsDemuxer) next() (*media.Packet, error) {
	if d.done {
		return nil, io.EOF
	}
	for {
		data, err := d.dmx.NextData()
		if err != nil {
			d.done = true
			if errors.Is(err, astits.ErrNoMorePackets) {
				if err := d.proc.wait(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %w", media.ErrDemuxFailed, err)
		}
		if pkt := d.handle(data); pkt != nil {
			return pkt, nil
		}
	}
}

// handle maps PMT entries to stream indices and turns PES data of a mapped
// PID into a packet. Everything else yields nil.
func (d *tsDemuxer) handle(data *astits.DemuxerData) *media.Packet {
	if data.PMT != nil {
		for i, es := range data.PMT.ElementaryStreams {
			if i < len(d.order) {
				d.pids[es.ElementaryPID] = d.order[i]
			}
		}
		return nil
	}
	if data.PES == nil {
		return nil
	}
	idx, ok := d.pids[data.PID]
	if !ok {
		return nil
	}
	pkt := &media.Packet{StreamIndex: idx, Data: data.PES.Data}
	if h := data.PES.Header; h != nil && h.OptionalHeader != nil && h.OptionalHeader.PTS != nil {
		pkt.PTS = h.OptionalHeader.PTS.Base
		pkt.HasPTS = true
	}
	return pkt
}

func (d *tsDemuxer) close() {
	d.done = true
	d.proc.stop()
}
