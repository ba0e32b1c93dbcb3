package phone

import (
	"fmt"
	"regexp"
)

// Party identifiers are E.164 phone numbers. Carrier lookups are an external
// concern; this package only checks the format.

var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Validate checks that number is a well-formed E.164 phone number.
func Validate(number string) error {
	if !e164.MatchString(number) {
		return fmt.Errorf("%s is not a valid phone number", number)
	}
	return nil
}
