// Package validation checks gateway inputs and configuration.
//
// Struct tags are the usual route:
//
//	type signInRequest struct {
//	    Email    string `json:"email" validate:"required,email"`
//	    Password string `json:"password" validate:"required,min=6"`
//	}
//	err := validation.Validate(req)
//
// Beyond the validator built-ins, the tags identifier (a plain SQL
// identifier) and backend_kind (a registered backend kind) are available.
// Values that arrive outside a struct, such as path parameters, go through
// the programmatic Validator:
//
//	v := validation.New()
//	v.Identifier("table", table).Required("id", id)
//	if err := v.Validate(); err != nil { ... }
//
// Both forms fail with an INVALID_INPUT AppError listing every field.
package validation
