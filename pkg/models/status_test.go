package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatus_String(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   string
	}{
		{"", "unset"},
		{SessionStatusCreated, "created"},
		{SessionStatusRunning, "running"},
		{SessionStatusCompleted, "completed"},
		{SessionStatusError, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestSessionStatus_IsValidAndTerminal(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		valid    bool
		terminal bool
	}{
		{"", false, false},
		{"paused", false, false},
		{SessionStatusCreated, true, false},
		{SessionStatusRunning, true, false},
		{SessionStatusCompleted, true, true},
		{SessionStatusError, true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.status.IsValid(), "IsValid(%q)", tt.status)
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), "IsTerminal(%q)", tt.status)
	}
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "none", MediaTypeNone.String())
	assert.Equal(t, "image", MediaTypeImage.String())
	assert.False(t, MediaTypeNone.IsValid())
	assert.False(t, MediaType("document").IsValid())
	for _, mt := range []MediaType{MediaTypeImage, MediaTypeVideo, MediaTypeAudio} {
		assert.True(t, mt.IsValid(), "IsValid(%q)", mt)
	}
}
