package session

// Session is the per-(user, device) refresh record. One session exists per
// device; re-registering a device replaces the prior record in place.
//
// RefreshHash is SHA-256 of the current refresh secret. The secret itself is
// never stored; rotation swaps the hash atomically.
type Session struct {
	ID          string
	UserID      string
	DeviceID    string
	DeviceModel string
	DeviceOS    string

	RefreshHash [32]byte

	// CreatedAt and UpdatedAt are unix seconds. UpdatedAt moves on every
	// successful rotation.
	CreatedAt int64
	UpdatedAt int64
}
