package model

// PlaybackState is a snapshot of what the provider reports as currently
// playing for a room. It is derived state: refreshed on every poll, never
// persisted, and stale after roughly one poll interval.
//
// Fields:
//  TrackID    – provider identifier of the current track.
//  Title      – track title.
//  Artist     – artist names joined with ", ".
//  ImageURL   – album art URL.
//  DurationMs – total track length in milliseconds.
//  ProgressMs – playback position in milliseconds at fetch time.
//  IsPlaying  – whether playback is active (false when paused).
type PlaybackState struct {
	TrackID    string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ImageURL   string `json:"image_url"`
	DurationMs int    `json:"duration"`
	ProgressMs int    `json:"time"`
	IsPlaying  bool   `json:"is_playing"`
}
