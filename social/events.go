package social

// Event types emitted to the Notification Transport. Wire names follow
// the client protocol (snake_case message types).
const (
	EventMemberJoined     = "party_member_joined"
	EventMemberLeft       = "party_member_left"
	EventCaptainChanged   = "party_captain_changed"
	EventReadyChanged     = "party_ready_changed"
	EventInviteReceived   = "party_invite_received"
	EventInviteResponded  = "party_invite_responded"
	EventPresenceUpdated  = "presence_updated"
	EventRequestReceived  = "friend_request_received"
	EventRequestResponded = "friend_request_responded"
	EventFriendRemoved    = "friend_removed"
)
