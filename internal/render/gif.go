package render

import (
	"errors"
	"image"
	"image/gif"
	"io"
	"time"
)

var errNoImages = errors.New("no images to encode")

// EncodeGIF writes the images as an animation that loops forever, showing
// each image for delay.
func EncodeGIF(w io.Writer, images []*image.Paletted, delay time.Duration) error {
	if len(images) == 0 {
		return errNoImages
	}
	cs := int(delay / (10 * time.Millisecond))
	anim := &gif.GIF{
		Image:     images,
		Delay:     make([]int, len(images)),
		LoopCount: 0,
	}
	for i := range anim.Delay {
		anim.Delay[i] = cs
	}
	return gif.EncodeAll(w, anim)
}
