// Package anim assembles rendered frames into animated GIFs.
package anim

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"time"

	"github.com/rtm0/climanim/internal/dataset"
	"github.com/rtm0/climanim/internal/render"
)

// ErrNoFrames is returned when encoding a sequence without frames.
var ErrNoFrames = errors.New("animation has no frames")

// Frame delays of the two animations.
const (
	MonthlyDelay = 200 * time.Millisecond
	WinterDelay  = 500 * time.Millisecond
)

// ScalePolicy decides which frames share a color scale.
type ScalePolicy int

const (
	// Global uses one scale across every frame of a sequence.
	Global ScalePolicy = iota
	// PerFile uses one scale for the frames of each source file.
	PerFile
)

func (p ScalePolicy) String() string {
	switch p {
	case Global:
		return "global"
	case PerFile:
		return "per-file"
	}
	return fmt.Sprintf("ScalePolicy(%d)", int(p))
}

// ParseScalePolicy parses "global" or "per-file".
func ParseScalePolicy(s string) (ScalePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "global":
		return Global, nil
	case "per-file", "perfile", "per_file":
		return PerFile, nil
	}
	return Global, fmt.Errorf("unknown scale policy %q, expected global or per-file", s)
}

// Frame is one image of an animation.
type Frame struct {
	Label  string
	Field  dataset.Field
	Source int // index of the input file, -1 if the frame has several
	Scale  render.Scale
}

// Sequence is an ordered list of frames and how to present them.
type Sequence struct {
	Title  string
	Units  string
	Delay  time.Duration
	Policy ScalePolicy

	frames   []Frame
	resolved bool
}

// Append adds a frame at the end of the sequence.
func (s *Sequence) Append(label string, f dataset.Field, source int) {
	s.frames = append(s.frames, Frame{Label: label, Field: f, Source: source})
	s.resolved = false
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	return len(s.frames)
}

// Frames returns the frames with their scales resolved.
func (s *Sequence) Frames() []Frame {
	s.resolve()
	return s.frames
}

// resolve sets the scale of every frame according to the policy.
func (s *Sequence) resolve() {
	if s.resolved {
		return
	}
	s.resolved = true
	if s.Policy == Global {
		sc := fieldScale(s.frames)
		for i := range s.frames {
			s.frames[i].Scale = sc
		}
		return
	}
	for start := 0; start < len(s.frames); {
		end := start + 1
		for end < len(s.frames) && s.frames[end].Source == s.frames[start].Source {
			end++
		}
		sc := fieldScale(s.frames[start:end])
		for i := start; i < end; i++ {
			s.frames[i].Scale = sc
		}
		start = end
	}
}

func fieldScale(frames []Frame) render.Scale {
	fields := make([]dataset.Field, len(frames))
	for i, f := range frames {
		fields[i] = f.Field
	}
	lo, hi, _ := dataset.Range(fields...)
	return render.Scale{Min: lo, Max: hi}
}

// Encode renders every frame and writes the animation to w. The colorbar of
// each image shows the scale of its frame.
func (s *Sequence) Encode(w io.Writer, r *render.Renderer) error {
	if len(s.frames) == 0 {
		return ErrNoFrames
	}
	images := make([]*image.Paletted, 0, len(s.frames))
	for _, f := range s.Frames() {
		img, err := r.Draw(s.Title, f.Label, s.Units, f.Field, f.Scale)
		if err != nil {
			return fmt.Errorf("drawing frame %s: %w", f.Label, err)
		}
		images = append(images, img)
	}
	return render.EncodeGIF(w, images, s.Delay)
}
