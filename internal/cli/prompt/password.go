package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch is returned when the confirmation entry differs
// from the first.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a single masked entry.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	entry, err := p.Run()
	return entry, wrapError(err)
}

// NewPassword prompts for a new password and a confirmation entry.
// The first entry must be at least minLength characters; the
// confirmation must match it exactly.
func NewPassword(minLength int) (string, error) {
	first := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}

	password, err := first.Run()
	if err != nil {
		return "", wrapError(err)
	}

	confirm, err := Password("Confirm password")
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
