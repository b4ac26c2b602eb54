// Package featureflags exposes environment-driven kill switches so
// parts of the profile surface can be turned off without a deploy.
package featureflags

import (
	"os"
	"strings"
)

// Flags currently honored by the handlers.
const (
	// DisableAvatarUploads turns the avatar upload endpoint into a 503
	// while the media store is unavailable.
	DisableAvatarUploads = "disable_avatar_uploads"

	// ReadOnlyProfiles rejects profile edits while keeping views up,
	// for use during data migrations.
	ReadOnlyProfiles = "read_only_profiles"
)

// Enabled reports whether a flag is switched on through the
// environment. A flag named disable_avatar_uploads is read from
// FLAG_DISABLE_AVATAR_UPLOADS; truthy values are 1/true/yes/on
// (case-insensitive), anything else is off.
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
