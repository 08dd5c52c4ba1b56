package serverutils

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest runs struct-tag validation on a bound request DTO and maps
// failures to a 400 with the offending field.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid field: "+ve[0].Field())
	}
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
