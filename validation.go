package authmanager

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

var (
	// NamePattern constrains usernames.
	NamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]+$`)
	// EmailPattern constrains emails and decides whether a login identifier is an email.
	EmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// GroupNamePattern constrains group names; it admits the __default__ group.
	GroupNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*$`)
)

// DefaultPhoneRegion is used when a phone number carries no country prefix.
var DefaultPhoneRegion = "US"

// ValidateUser checks the identity fields of a user about to be created.
func ValidateUser(u *User) error {
	if u == nil {
		return invalidUserError(errors.New("user is nil"))
	}

	err := validation.ValidateStruct(u,
		validation.Field(&u.Username, validation.Required, validation.Length(2, 64), validation.Match(NamePattern)),
		validation.Field(&u.Email, validation.Match(EmailPattern), is.Email),
		validation.Field(&u.State, validation.By(func(value interface{}) error {
			state, _ := value.(UserState)
			if state == "" || state == UserStateActive || state == UserStateInactive {
				return nil
			}
			return errors.New("must be active or inactive")
		})),
	)
	if err != nil {
		return invalidUserError(err)
	}
	return nil
}

// ValidateGroupName checks a group name.
func ValidateGroupName(name string) error {
	err := validation.Validate(name, validation.Required, validation.Length(1, 128), validation.Match(GroupNamePattern))
	if err != nil {
		return invalidGroupError(err)
	}
	return nil
}

// NormalizePhone parses raw and formats it as E.164. Empty input is allowed.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", invalidUserError(err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", invalidUserError(errors.New("phone number is not valid"))
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func isEmailIdentifier(identifier string) bool {
	return EmailPattern.MatchString(identifier)
}
