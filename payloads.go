package accounts

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	urlPattern      = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
)

const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

func nicknameRules() []validation.Rule {
	return []validation.Rule{
		validation.Length(3, 50),
		validation.Match(nicknamePattern).Error("may only contain letters, digits, underscores and hyphens"),
	}
}

func urlRules() []validation.Rule {
	return []validation.Rule{
		validation.Match(urlPattern).Error("must be a valid http or https URL"),
	}
}

// ProfileFields are the free text and URL attributes shared by payloads
type ProfileFields struct {
	FirstName          string `form:"first_name" json:"first_name"`
	LastName           string `form:"last_name" json:"last_name"`
	Bio                string `form:"bio" json:"bio"`
	ProfilePictureURL  string `form:"profile_picture_url" json:"profile_picture_url"`
	LinkedInProfileURL string `form:"linkedin_profile_url" json:"linkedin_profile_url"`
	GitHubProfileURL   string `form:"github_profile_url" json:"github_profile_url"`
}

func (p ProfileFields) apply(a *Account) {
	a.FirstName = strings.TrimSpace(p.FirstName)
	a.LastName = strings.TrimSpace(p.LastName)
	a.Bio = p.Bio
	a.ProfilePictureURL = strings.TrimSpace(p.ProfilePictureURL)
	a.LinkedInProfileURL = strings.TrimSpace(p.LinkedInProfileURL)
	a.GitHubProfileURL = strings.TrimSpace(p.GitHubProfileURL)
}

// RegisterPayload is the self-service registration request
type RegisterPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Nickname string `form:"nickname" json:"nickname"`
	ProfileFields
}

// Validate will run validation rules
func (r RegisterPayload) Validate() error {
	return mergeValidation(r.validate()...)
}

func (r RegisterPayload) validate() []error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&r.Nickname, nicknameRules()...),
	)
	return []error{err, r.ProfileFields.validate()}
}

func (p ProfileFields) validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Length(0, 100)),
		validation.Field(&p.LastName, validation.Length(0, 100)),
		validation.Field(&p.ProfilePictureURL, urlRules()...),
		validation.Field(&p.LinkedInProfileURL, urlRules()...),
		validation.Field(&p.GitHubProfileURL, urlRules()...),
	)
}

// CreateAccountPayload is the administrative create request
type CreateAccountPayload struct {
	RegisterPayload
	Role string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r CreateAccountPayload) Validate() error {
	errs := r.RegisterPayload.validate()
	if r.Role != "" {
		if _, err := ParseRole(r.Role); err != nil {
			errs = append(errs, validation.Errors{
				"role": errors.New(roleChoices()),
			})
		}
	}
	return mergeValidation(errs...)
}

// UpdateAccountPayload carries the fields to change. Nil means unset.
type UpdateAccountPayload struct {
	Email              *string `json:"email"`
	Nickname           *string `json:"nickname"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Bio                *string `json:"bio"`
	ProfilePictureURL  *string `json:"profile_picture_url"`
	LinkedInProfileURL *string `json:"linkedin_profile_url"`
	GitHubProfileURL   *string `json:"github_profile_url"`
}

// IsEmpty reports whether no field carries a value
func (r UpdateAccountPayload) IsEmpty() bool {
	for _, v := range []*string{
		r.Email, r.Nickname, r.FirstName, r.LastName, r.Bio,
		r.ProfilePictureURL, r.LinkedInProfileURL, r.GitHubProfileURL,
	} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return false
		}
	}
	return true
}

// Validate will run validation rules
func (r UpdateAccountPayload) Validate() error {
	if r.IsEmpty() {
		return NewValidationError("At least one field must be provided for update", nil).
			WithTextCode(TextCodeMissingUpdateFields)
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Length(3, 255), is.Email),
		validation.Field(&r.Nickname, append([]validation.Rule{validation.NilOrNotEmpty}, nicknameRules()...)...),
		validation.Field(&r.FirstName, validation.Length(0, 100)),
		validation.Field(&r.LastName, validation.Length(0, 100)),
		validation.Field(&r.ProfilePictureURL, urlRules()...),
		validation.Field(&r.LinkedInProfileURL, urlRules()...),
		validation.Field(&r.GitHubProfileURL, urlRules()...),
	)
	return toValidationError(err)
}

// apply copies the set fields onto a and returns the changed columns
func (r UpdateAccountPayload) apply(a *Account) []string {
	var columns []string
	set := func(dst *string, src *string, column string, normalize func(string) string) {
		if src == nil {
			return
		}
		v := normalize(*src)
		if v == *dst {
			return
		}
		*dst = v
		columns = append(columns, column)
	}

	set(&a.Email, r.Email, "email", NormalizeEmail)
	set(&a.Nickname, r.Nickname, "nickname", strings.TrimSpace)
	set(&a.FirstName, r.FirstName, "first_name", strings.TrimSpace)
	set(&a.LastName, r.LastName, "last_name", strings.TrimSpace)
	set(&a.Bio, r.Bio, "bio", func(s string) string { return s })
	set(&a.ProfilePictureURL, r.ProfilePictureURL, "profile_picture_url", strings.TrimSpace)
	set(&a.LinkedInProfileURL, r.LinkedInProfileURL, "linkedin_profile_url", strings.TrimSpace)
	set(&a.GitHubProfileURL, r.GitHubProfileURL, "github_profile_url", strings.TrimSpace)
	return columns
}

// LoginPayload follows the OAuth2 password flow field names; username is
// the account email.
type LoginPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginPayload) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
	return toValidationError(err)
}

// ProfessionalPayload toggles the professional flag
type ProfessionalPayload struct {
	IsProfessional bool `form:"is_professional" json:"is_professional"`
}

func mergeValidation(errs ...error) error {
	merged := validation.Errors{}
	for _, err := range errs {
		if err == nil {
			continue
		}
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return toValidationError(err)
		}
		for k, v := range verrs {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return toValidationError(merged)
}

// toValidationError converts ozzo errors into a validation error with a
// field list sorted by field name
func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return NewValidationError(err.Error(), nil)
	}

	if len(verrs) == 0 {
		return nil
	}

	fields := make(FieldErrors, 0, len(verrs))
	for name, ferr := range verrs {
		if ferr == nil {
			continue
		}
		fields = append(fields, FieldError{Field: name, Message: ferr.Error()})
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Field < fields[j].Field
	})

	return NewValidationError("Invalid request payload", fields)
}
