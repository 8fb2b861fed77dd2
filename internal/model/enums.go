package model

// Role is the part a connection plays in a room.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
	RoleUnknown  Role = "unknown"
)

// TrustMode decides whether capability tokens are issued and checked.
type TrustMode string

const (
	TrustModeOpen   TrustMode = "open"
	TrustModeSigned TrustMode = "signed"
)
