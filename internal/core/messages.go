package core

import "fmt"

// Reactions mirror the outcome: a note for success, a question mark for
// anything the sender should look at.
const (
	reactionAdded   = "musical_note"
	reactionProblem = "grey_question"
)

const (
	msgUnresolved = "Couldn't resolve that link—try a Spotify link or include artist + title."
	msgNotConfigured = "Spotify is not configured. Set the client ID, client secret, refresh token " +
		"and playlist ID, then restart the bot."
	msgAlreadyAdded = "All tracks were already added in the last hour."
	msgUpstreamError = "Couldn't add track(s) to the playlist—Spotify returned an error. " +
		"If this keeps happening, check the bot logs."
)

func msgAddedCount(n int) string {
	return fmt.Sprintf("Added %d track(s) to the playlist ✅", n)
}
