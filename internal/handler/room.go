package handler

import (
	"errors"
	"regexp"

	"github.com/goevery/tracker/internal/ierr"
)

// NameValidator checks room and event names. Both are opaque to the hub but
// must stay safe to use as path segments and Redis channel suffixes.
type NameValidator struct {
	nameRegex *regexp.Regexp
}

func NewNameValidator() *NameValidator {
	return &NameValidator{
		nameRegex: regexp.MustCompile(`^[\w-]{1,128}$`),
	}
}

func (v *NameValidator) ValidateRoom(room string) error {
	if room == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("room is required"))
	}

	if !v.nameRegex.MatchString(room) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid room"))
	}

	return nil
}

func (v *NameValidator) ValidateEvent(event string) error {
	if event == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("event is required"))
	}

	if !v.nameRegex.MatchString(event) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid event"))
	}

	return nil
}

func (v *NameValidator) ValidateUserId(userId string) error {
	if userId == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId is required"))
	}

	if !v.nameRegex.MatchString(userId) {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid userId"))
	}

	return nil
}
