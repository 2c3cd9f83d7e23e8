package container

import (
	"errors"
	"fmt"
	"io"

	"github.com/at-wat/ebml-go"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// Matroska document shape read from the remux. Channel fields receive
// elements while the document is still being parsed.
type mkvDocument struct {
	Segment mkvSegment
}

type mkvSegment struct {
	Cluster mkvCluster
}

type mkvCluster struct {
	Timecode    chan uint64
	SimpleBlock chan ebml.Block
	BlockGroup  chan mkvBlockGroup
}

type mkvBlockGroup struct {
	Block ebml.Block
}

// mkvDemuxer reads blocks out of a Matroska remux with ebml-go. ffmpeg
// numbers tracks from 1 in output order.
type mkvDemuxer struct {
	proc  *remux
	order []int

	timecodes chan uint64
	blocks    chan ebml.Block
	groups    chan mkvBlockGroup
	parsed    chan struct{}
	parseErr  error

	cluster  int64
	pending  []*media.Packet
	finished bool
}

func newMKVDemuxer(proc *remux, r io.Reader, order []int) *mkvDemuxer {
	d := &mkvDemuxer{
		proc:      proc,
		order:     order,
		timecodes: make(chan uint64),
		blocks:    make(chan ebml.Block),
		groups:    make(chan mkvBlockGroup),
		parsed:    make(chan struct{}),
	}
	doc := &mkvDocument{Segment: mkvSegment{Cluster: mkvCluster{
		Timecode:    d.timecodes,
		SimpleBlock: d.blocks,
		BlockGroup:  d.groups,
	}}}
	go func() {
		defer close(d.parsed)
		d.parseErr = ebml.Unmarshal(r, doc, ebml.WithIgnoreUnknown(true))
	}()
	return d
}

func (d *mkvDemuxer) next() (*media.Packet, error) {
	for {
		if len(d.pending) > 0 {
			pkt := d.pending[0]
			d.pending[0] = nil
			d.pending = d.pending[1:]
			return pkt, nil
		}
		if d.finished {
			return nil, io.EOF
		}
		select {
		case tc := <-d.timecodes:
			d.cluster = int64(tc)
		case b := <-d.blocks:
			d.queue(b)
		case g := <-d.groups:
			d.queue(g.Block)
		case <-d.parsed:
			d.finished = true
			if err := d.parseErr; err != nil && !errors.Is(err, io.EOF) {
				d.proc.stop()
				return nil, fmt.Errorf("%w: matroska: %w", media.ErrDemuxFailed, err)
			}
			if err := d.proc.wait(); err != nil {
				return nil, err
			}
		}
	}
}

// queue turns a block of a mapped track into packets, one per laced frame.
func (d *mkvDemuxer) queue(b ebml.Block) {
	n := int(b.TrackNumber) - 1
	if n < 0 || n >= len(d.order) {
		return
	}
	for _, frame := range b.Data {
		d.pending = append(d.pending, &media.Packet{
			StreamIndex: d.order[n],
			Data:        frame,
			PTS:         d.cluster + int64(b.Timecode),
			HasPTS:      true,
		})
	}
}

// close kills the remux and drains the parser so its goroutine exits.
func (d *mkvDemuxer) close() {
	d.proc.cancel()
	for !d.finished {
		select {
		case <-d.timecodes:
		case <-d.blocks:
		case <-d.groups:
		case <-d.parsed:
			d.finished = true
		}
	}
	d.pending = nil
	d.proc.stop()
}
