package models

import "github.com/google/uuid"

type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
	PlatformApple   Platform = "apple"
	PlatformLocal   Platform = "local"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformSpotify, PlatformYouTube, PlatformApple, PlatformLocal:
		return true
	}

	return false
}

// Track is owned by exactly one room at a time, either queued or in the
// current slot. Promotion moves the pointer, it never copies.
type Track struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	URL      string   `json:"url"`
	Platform Platform `json:"platform"`
	Duration string   `json:"duration"`
	Votes    int      `json:"votes"`
	AddedBy  string   `json:"addedBy"`

	// voters enforces one vote per member per track.
	voters map[uuid.UUID]struct{}
	// seq is the insertion order, the tie-break for equal vote counts.
	seq int
}

// NewTrack builds a track from a client payload. The vote count starts at
// whatever the proposer carried, clients seed new tracks with one vote;
// negative counts are clamped to zero. A missing id gets a fresh one.
func NewTrack(in Track) *Track {
	t := in

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if t.Votes < 0 {
		t.Votes = 0
	}

	t.voters = make(map[uuid.UUID]struct{})

	return &t
}
