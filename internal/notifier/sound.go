package notifier

import (
	"context"
	"fmt"
)

// DefaultSoundFile is played when an alert enables sound without
// naming a file.
const DefaultSoundFile = "alert.wav"

// Player plays a sound file through the host audio system.
type Player interface {
	Play(ctx context.Context, file string) error
}

// SoundChannel plays an audio cue for each notification.
type SoundChannel struct {
	player Player
}

// NewSoundChannel creates a sound channel over the given player.
func NewSoundChannel(p Player) *SoundChannel {
	return &SoundChannel{player: p}
}

// Name returns "sound".
func (s *SoundChannel) Name() string {
	return "sound"
}

// Send plays the alert's configured sound file, or DefaultSoundFile
// when none is set. Summary notifications use the default file.
func (s *SoundChannel) Send(ctx context.Context, n *Notification) error {
	file := DefaultSoundFile
	if n.Alert != nil && n.Alert.Notifications.SoundFile != "" {
		file = n.Alert.Notifications.SoundFile
	}
	if err := s.player.Play(ctx, file); err != nil {
		return fmt.Errorf("play %s: %w", file, err)
	}
	return nil
}

// Close is a no-op for the sound channel.
func (s *SoundChannel) Close() error {
	return nil
}
