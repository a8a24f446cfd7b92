package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrAuthentication = errors.New("authentication failed")
	ErrConflict       = errors.New("conflict")
	ErrTransport      = errors.New("transport failure")
	ErrIntegrity      = errors.New("integrity violation")
)

var (
	ErrSelfFollow        = fmt.Errorf("%w: an author cannot follow themselves", ErrValidation)
	ErrMalformedFQID     = fmt.Errorf("%w: malformed fqid", ErrValidation)
	ErrUnsupportedType   = fmt.Errorf("%w: unsupported activity type", ErrValidation)
	ErrInvalidVisibility = fmt.Errorf("%w: invalid visibility", ErrValidation)
	ErrAlreadyFollower   = fmt.Errorf("%w: follower already exists", ErrConflict)
	ErrAuthorNotFound    = fmt.Errorf("author %w", ErrNotFound)
	ErrNodeNotFound      = fmt.Errorf("node %w", ErrNotFound)
	ErrFollowNotFound    = fmt.Errorf("follow request %w", ErrNotFound)
	ErrFriendNotFound    = fmt.Errorf("friendship %w", ErrNotFound)
	ErrPostNotFound      = fmt.Errorf("post %w", ErrNotFound)
)
