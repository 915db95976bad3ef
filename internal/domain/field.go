package domain

import (
	"fmt"
	"strings"
)

// MovieField is a category of editable movie attribute.
type MovieField string

const (
	FieldTitle       MovieField = "TITLE"
	FieldType        MovieField = "TYPE"
	FieldOtherTitle  MovieField = "OTHER_TITLE"
	FieldReview      MovieField = "REVIEW"
	FieldBudget      MovieField = "BUDGET"
	FieldBoxOffice   MovieField = "BOX_OFFICE"
	FieldSite        MovieField = "SITE"
	FieldReleaseDate MovieField = "RELEASE_DATE"
	FieldOutline     MovieField = "OUTLINE"
	FieldSummary     MovieField = "SUMMARY"
	FieldSynopsis    MovieField = "SYNOPSIS"
	FieldCountry     MovieField = "COUNTRY"
	FieldGenre       MovieField = "GENRE"
	FieldLanguage    MovieField = "LANGUAGE"
	FieldPhoto       MovieField = "PHOTO"
	FieldPoster      MovieField = "POSTER"
)

// fieldSpec is the static metadata of one movie field.
type fieldSpec struct {
	permission UserMoviePermission
	// amendable fields are long texts corrected in place instead of being replaced
	amendable bool
	// required fields always hold exactly one live value: they can be updated, never added or deleted
	required   bool
	newPayload func() Payload
}

var fieldOrder = []MovieField{
	FieldTitle, FieldType, FieldOtherTitle, FieldReview, FieldBudget, FieldBoxOffice, FieldSite,
	FieldReleaseDate, FieldOutline, FieldSummary, FieldSynopsis, FieldCountry, FieldGenre,
	FieldLanguage, FieldPhoto, FieldPoster,
}

var fieldCatalog = map[MovieField]fieldSpec{
	FieldTitle:       {permission: PermissionTitle, required: true, newPayload: func() Payload { return &Title{} }},
	FieldType:        {permission: PermissionType, required: true, newPayload: func() Payload { return &TypeValue{} }},
	FieldOtherTitle:  {permission: PermissionOtherTitle, newPayload: func() Payload { return &OtherTitle{} }},
	FieldReview:      {permission: PermissionReview, amendable: true, newPayload: func() Payload { return &Review{} }},
	FieldBudget:      {permission: PermissionBudget, newPayload: func() Payload { return &Budget{} }},
	FieldBoxOffice:   {permission: PermissionBoxOffice, newPayload: func() Payload { return &BoxOffice{} }},
	FieldSite:        {permission: PermissionSite, newPayload: func() Payload { return &Site{} }},
	FieldReleaseDate: {permission: PermissionReleaseDate, newPayload: func() Payload { return &ReleaseDate{} }},
	FieldOutline:     {permission: PermissionOutline, amendable: true, newPayload: func() Payload { return &Outline{} }},
	FieldSummary:     {permission: PermissionSummary, amendable: true, newPayload: func() Payload { return &Summary{} }},
	FieldSynopsis:    {permission: PermissionSynopsis, amendable: true, newPayload: func() Payload { return &Synopsis{} }},
	FieldCountry:     {permission: PermissionCountry, newPayload: func() Payload { return &Country{} }},
	FieldGenre:       {permission: PermissionGenre, newPayload: func() Payload { return &Genre{} }},
	FieldLanguage:    {permission: PermissionLanguage, newPayload: func() Payload { return &Language{} }},
	FieldPhoto:       {permission: PermissionPhoto, newPayload: func() Payload { return &Photo{} }},
	FieldPoster:      {permission: PermissionPoster, newPayload: func() Payload { return &Poster{} }},
}

// AllFields returns every movie field in catalog order.
func AllFields() []MovieField {
	out := make([]MovieField, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// ParseMovieField accepts the canonical name case-insensitively, with '-' or '_' separators.
func ParseMovieField(raw string) (MovieField, error) {
	f := MovieField(strings.ToUpper(strings.ReplaceAll(raw, "-", "_")))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown movie field %q", ErrValidation, raw)
	}
	return f, nil
}

// Valid reports whether f is in the catalog.
func (f MovieField) Valid() bool {
	_, ok := fieldCatalog[f]
	return ok
}

// RequiredPermissions returns the permissions that allow verifying f: always ALL plus the field's own tag.
// The returned slice is a fresh copy.
func (f MovieField) RequiredPermissions() []UserMoviePermission {
	spec, ok := fieldCatalog[f]
	if !ok {
		return nil
	}
	return []UserMoviePermission{PermissionAll, spec.permission}
}

// Amendable reports whether updates to f patch the existing record in place.
func (f MovieField) Amendable() bool {
	return fieldCatalog[f].amendable
}

// Required reports whether f must always hold a value, so that only updates are allowed.
func (f MovieField) Required() bool {
	return fieldCatalog[f].required
}
