package models

import "time"

// PlayRecord is one promoted track, kept for the room history endpoint.
type PlayRecord struct {
	ID        int64     `db:"id" json:"-"`
	RoomCode  string    `db:"room_code" json:"roomId"`
	Title     string    `db:"title" json:"title"`
	Artist    string    `db:"artist" json:"artist"`
	Platform  string    `db:"platform" json:"platform"`
	URL       string    `db:"url" json:"url"`
	AddedBy   string    `db:"added_by" json:"addedBy"`
	Votes     int       `db:"votes" json:"votes"`
	StartedAt time.Time `db:"started_at" json:"startedAt"`
}

// NewPlayRecord captures a track at the moment of promotion.
func NewPlayRecord(roomCode string, t *Track, startedAt time.Time) *PlayRecord {
	return &PlayRecord{
		RoomCode:  roomCode,
		Title:     t.Title,
		Artist:    t.Artist,
		Platform:  string(t.Platform),
		URL:       t.URL,
		AddedBy:   t.AddedBy,
		Votes:     t.Votes,
		StartedAt: startedAt,
	}
}
