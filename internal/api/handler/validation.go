package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/maraichr/slidepilot/pkg/apierr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeAndValidate reads a JSON body into v and runs its struct tags.
func decodeAndValidate(r *http.Request, v any) *apierr.Error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.InvalidRequestBody()
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				details = append(details, fieldMessage(fe))
			}
			return apierr.ValidationFailed(details...)
		}
		return apierr.ValidationFailed(err.Error())
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func parseID(raw, entity string) (uuid.UUID, *apierr.Error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierr.InvalidID(entity)
	}
	return id, nil
}
