// Package validate checks user input before it reaches the network.
package validate

import (
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/and161185/cardtrader/internal/errs"
	"github.com/and161185/cardtrader/internal/model"
)

const (
	MinPasswordLen = 6
	MinUsernameLen = 3
)

// Login checks login input.
func Login(c model.Credentials) error {
	if err := email(c.Email); err != nil {
		return err
	}
	return password(c.Password)
}

// Register checks registration input.
func Register(r model.Registration) error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Username)) < MinUsernameLen {
		return errs.Validation("username must be at least %d characters", MinUsernameLen)
	}
	if err := email(r.Email); err != nil {
		return err
	}
	return password(r.Password)
}

// AddCard checks a collection attach request. An empty condition is allowed.
func AddCard(r model.AddCardRequest) error {
	if r.CardID < 1 {
		return errs.Validation("card id is required")
	}
	if r.Condition != "" && !r.Condition.Valid() {
		return errs.Validation("unknown condition %q", r.Condition)
	}
	return nil
}

// CreateTrade checks a trade offer.
func CreateTrade(r model.CreateTradeRequest) error {
	if len(r.OfferingCards) == 0 {
		return errs.Validation("at least one offering card is required")
	}
	if len(r.ReceivingCards) == 0 {
		return errs.Validation("at least one receiving card is required")
	}
	for _, id := range r.OfferingCards {
		if id < 1 {
			return errs.Validation("invalid offering card id %d", id)
		}
	}
	for _, id := range r.ReceivingCards {
		if id < 1 {
			return errs.Validation("invalid receiving card id %d", id)
		}
	}
	return nil
}

// ID checks a resource id.
func ID(id int64) error {
	if id < 1 {
		return errs.Validation("invalid id %d", id)
	}
	return nil
}

func email(s string) error {
	if strings.TrimSpace(s) == "" {
		return errs.Validation("email is required")
	}
	if !govalidator.IsEmail(s) {
		return errs.Validation("invalid email address")
	}
	return nil
}

func password(s string) error {
	if utf8.RuneCountInString(s) < MinPasswordLen {
		return errs.Validation("password must be at least %d characters", MinPasswordLen)
	}
	return nil
}
