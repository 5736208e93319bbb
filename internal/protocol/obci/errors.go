package obci

import "errors"

var (
	ErrUndefinedInput         = errors.New("undefined or empty input")
	ErrInvalidLength          = errors.New("invalid byte length")
	ErrInvalidStartByte       = errors.New("invalid start byte")
	ErrUnrecognizedPacketType = errors.New("unrecognized packet type")
	ErrInvalidChannelConfig   = errors.New("invalid channel settings")
	ErrInvalidTransport       = errors.New("invalid transport")
)
