package container

import (
	"fmt"

	"github.com/Monkeyanator/framegrab/pkg/media"
)

// SelectVideoStream returns the first video stream in index order.
func SelectVideoStream(streams []media.StreamDescriptor) (media.StreamDescriptor, error) {
	best := -1
	for i, s := range streams {
		if s.Kind != media.KindVideo {
			continue
		}
		if best < 0 || s.Index < streams[best].Index {
			best = i
		}
	}
	if best < 0 {
		return media.StreamDescriptor{}, fmt.Errorf("%w among %d streams", media.ErrNoVideoStream, len(streams))
	}
	return streams[best], nil
}
