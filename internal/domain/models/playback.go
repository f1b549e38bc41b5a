package models

import "time"

// TogglePlayback flips play/pause and re-anchors the position. With nothing
// current and a non-empty queue it promotes the head and starts from zero;
// with nothing current and an empty queue it is a no-op. Reports whether
// state changed.
func (r *Room) TogglePlayback(now time.Time) bool {
	if r.Current == nil {
		if r.PromoteNext() == nil {
			return false
		}

		r.Playing = true
		r.setAnchor(0, now)

		return true
	}

	pos := r.Position(now)
	r.Playing = !r.Playing
	r.setAnchor(pos, now)

	return true
}

// SkipTrack drops the current track and promotes the next one, keeping the
// play/pause state. When the queue is exhausted playback stops. Returns the
// promoted track, if any, and whether state changed.
func (r *Room) SkipTrack(now time.Time) (*Track, bool) {
	if r.Current == nil && len(r.Queue) == 0 {
		return nil, false
	}

	r.Current = nil

	next := r.PromoteNext()
	if next == nil {
		r.Playing = false
	}

	r.setAnchor(0, now)

	return next, true
}

// Position derives the playback position at now from the anchor: the anchored
// position plus wall-clock time elapsed since, while playing.
func (r *Room) Position(now time.Time) int64 {
	if !r.Playing {
		return r.AnchorPosition
	}

	return r.AnchorPosition + (now.UnixMilli() - r.AnchorAt)
}

func (r *Room) setAnchor(position int64, now time.Time) {
	r.AnchorPosition = position
	r.AnchorAt = now.UnixMilli()
}
