package domain

import "time"

// PlaybackSample is a snapshot of host playback: position in seconds and the
// play/pause flag. SampledAt is server-assigned when the report arrives.
type PlaybackSample struct {
	Position  float64   `json:"time"`
	Playing   bool      `json:"playing"`
	SampledAt time.Time `json:"sampledAt"`
}

// MediaSource points at what the room is watching. The bytes behind the URL
// are opaque to this server.
type MediaSource struct {
	URL      string        `json:"url"`
	Metadata MovieMetadata `json:"metadata"`
}

// MovieMetadata is display-only material forwarded verbatim to members.
type MovieMetadata struct {
	Title        string  `json:"title,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	ThumbnailURL string  `json:"thumbnailUrl,omitempty"`
}

// PlaylistItem is one queued entry. AddedBy keeps the submitter's account id
// so removal authorization can check it later.
type PlaylistItem struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Duration     float64   `json:"duration,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	AddedBy      UserID    `json:"addedBy"`
	AddedAt      time.Time `json:"addedAt"`
}

func (i PlaylistItem) Valid() bool {
	return i.Title != "" && i.URL != ""
}

// Source converts a playlist entry into a playable media source.
func (i PlaylistItem) Source() MediaSource {
	return MediaSource{
		URL: i.URL,
		Metadata: MovieMetadata{
			Title:        i.Title,
			Duration:     i.Duration,
			ThumbnailURL: i.ThumbnailURL,
		},
	}
}
