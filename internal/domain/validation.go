package domain

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// requiredID rejects uuid.Nil. validation.Required cannot, since uuid.UUID is
// a fixed-size array that is never "empty".
var requiredID = validation.By(func(value any) error {
	switch id := value.(type) {
	case uuid.UUID:
		if id == uuid.Nil {
			return errors.New("cannot be nil")
		}
	case *uuid.UUID:
		if id != nil && *id == uuid.Nil {
			return errors.New("cannot be nil")
		}
	}
	return nil
})
