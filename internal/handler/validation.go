package handler

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/flicky/storefront-api/internal/model"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the custom binding rules ("sku") to gin's validator engine.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("unexpected validator engine")
			return
		}
		registerErr = v.RegisterValidation("sku", func(fl validator.FieldLevel) bool {
			return model.ValidSKU(fl.Field().String())
		})
	})
	return registerErr
}
