package nxt

// Field is one request header as laid out by the daemon.
type Field struct {
	Name        Sptr
	NameLength  uint8
	Value       Sptr
	ValueLength uint32
}

// Request is the per-request metadata block living in shared memory. Every
// string is addressed through an Sptr plus its length.
type Request struct {
	Method       Sptr
	MethodLength uint8

	Version       Sptr
	VersionLength uint8

	Remote       Sptr
	RemoteLength uint8

	Local       Sptr
	LocalLength uint8

	ServerName       Sptr
	ServerNameLength uint32

	Target       Sptr
	TargetLength uint32

	Path       Sptr
	PathLength uint32

	Query       Sptr
	QueryLength uint32

	TLS           bool
	ContentLength uint64
	Fields        []Field
}
