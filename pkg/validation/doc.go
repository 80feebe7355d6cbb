// Package validation wraps a collected request with declarative rules.
//
// # Overview
//
// A request type is declared as a Spec: an optional authorization check,
// a ruleset and custom messages.
//
//	var StoreUser = validation.Spec{
//	    Rules: validation.Ruleset{
//	        "name":  validation.ParseRules("required|string"),
//	        "email": validation.ParseRules("required|email"),
//	    },
//	    Messages: map[string]string{
//	        "name.required": "Please enter your name",
//	    },
//	}
//
// NewFormRequest binds a Spec to an element. Validate re-checks
// authorization, re-collects the payload from the live tree, evaluates each
// field's rules in order and keeps only the first failure per field.
//
// # Rendering
//
// Validate marks every control of the bound form: failing controls get the
// is-invalid class, and each control is followed by a
// <div class="error-message"> holding its message (empty when valid).
//
// # Rules
//
// Built in: required, string, email, numeric, alpha_num, min:N and max:N.
// Unknown tokens are ignored. Applications add rules with RegisterRule.
package validation
