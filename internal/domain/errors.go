package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoFile             = errors.New("no image selected")
	ErrUnknownTag         = errors.New("unknown transformation tag")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrBackend            = errors.New("backend failure")
	ErrMalformedResponse  = errors.New("malformed backend response")
	ErrNoImage            = errors.New("record has no image")
	ErrFileTooLarge       = errors.New("file too large")
)
