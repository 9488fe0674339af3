package server

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const maxNameLength = 32

type createRoomRequest struct {
	Duration int `json:"duration" validate:"omitempty,min=1,roundmax"`
}

type joinRequest struct {
	RoomID string `validate:"required"`
	Name   string `validate:"required,max=32"`
}

type fieldMessages map[string]map[string]string

// newValidator returns a validator that knows the configured round limit.
func newValidator(maxRoundDuration int) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("roundmax", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(maxRoundDuration)
	})
	return v
}

func createRoomMessages(maxRoundDuration int) fieldMessages {
	msg := fmt.Sprintf("duration must be between 1 and %d seconds", maxRoundDuration)
	return fieldMessages{
		"Duration": {"min": msg, "roundmax": msg},
	}
}

var joinMessages = fieldMessages{
	"RoomID": {"required": "room_id is required"},
	"Name": {
		"required": "name is required",
		"max":      fmt.Sprintf("name must be at most %d characters", maxNameLength),
	},
}

func resolveValidationError(err error, messages fieldMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}
