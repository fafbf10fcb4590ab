package config

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

// Validate checks `validate` struct tags on a loaded config.
func Validate(cfg any) error {
	validatorOnce.Do(func() {
		validate = validator.New()
	})
	return validate.Struct(cfg)
}
