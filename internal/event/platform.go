package event

import "strings"

// DefaultPlatformToken is assumed for events that carry no "for" field
const DefaultPlatformToken = "streamlabs"

// Platform is the service an event originates from. The feed names it with
// one of several tokens.
type Platform struct {
	Name   string
	tokens []string
}

var (
	PlatformStreamlabs = NewPlatform("streamlabs", "streamlabs")
	PlatformTwitch     = NewPlatform("twitch", "twitch_account", "twitch")
	PlatformYouTube    = NewPlatform("youtube", "youtube_account", "youtube")
	PlatformKick       = NewPlatform("kick", "kick_account", "kick")
)

// NewPlatform creates a platform accepting the given feed tokens
func NewPlatform(name string, tokens ...string) Platform {
	return Platform{Name: name, tokens: tokens}
}

// Matches compares a feed token case-insensitively
func (p Platform) Matches(token string) bool {
	for _, t := range p.tokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return p.Name
}
