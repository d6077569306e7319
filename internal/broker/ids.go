package broker

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	idLength   = 8

	clientOrderIDPrefix = "clo_"
	execIDPrefix        = "exe_"
)

// NewClientOrderID returns a fresh "clo_" identifier with an 8-character
// alphanumeric token. Uniqueness is probabilistic.
func NewClientOrderID() string {
	return clientOrderIDPrefix + gonanoid.MustGenerate(idAlphabet, idLength)
}

// NewExecID returns a fresh "exe_" identifier with an 8-character
// alphanumeric token.
func NewExecID() string {
	return execIDPrefix + gonanoid.MustGenerate(idAlphabet, idLength)
}
