package httpserver

const (
	ErrInvalidJSON      = "invalid json"
	ErrBadForm          = "bad form"
	ErrInvalidSignature = "invalid signature"
)
