package data

// SessionKeyLen is the size in bytes of a derived symmetric session key.
const SessionKeyLen = 32

// SessionKey is a 32-byte symmetric key produced solely by the DH
// session-key builder.
type SessionKey [SessionKeyLen]byte
