package models

// SessionStatus represents the lifecycle state of a crawl session
type SessionStatus string

const (
	SessionStatusCreated   SessionStatus = "created"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// String implements fmt.Stringer for logging
func (s SessionStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known lifecycle value
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusCreated, SessionStatusRunning, SessionStatusCompleted, SessionStatusError:
		return true
	}
	return false
}

// IsTerminal returns true once the session can no longer transition
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusError
}

// MediaType is the category of a downloaded asset, derived from its sniffed MIME type
type MediaType string

const (
	MediaTypeNone  MediaType = "" // Not a media category; the base metadata variant
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// String implements fmt.Stringer for logging
func (t MediaType) String() string {
	if t == "" {
		return "none"
	}
	return string(t)
}

// IsValid returns true for the three media categories
func (t MediaType) IsValid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeAudio:
		return true
	}
	return false
}
