package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Payload is the field-specific value carried by a MovieInfo record.
// Each movie field has exactly one payload type, see the field catalog.
type Payload interface {
	Field() MovieField
}

// MovieType is the kind of production.
type MovieType string

const (
	MovieTypeMovie   MovieType = "MOVIE"
	MovieTypeTVMovie MovieType = "TV_MOVIE"
	MovieTypeSeries  MovieType = "SERIES"
	MovieTypeShort   MovieType = "SHORT"
	MovieTypeVideo   MovieType = "VIDEO"
)

// Title is the primary title of a movie.
type Title struct {
	Title string `json:"title" validate:"required,min=1,max=255"`
}

// TypeValue is the production kind of a movie.
type TypeValue struct {
	Type MovieType `json:"type" validate:"required,oneof=MOVIE TV_MOVIE SERIES SHORT VIDEO"`
}

// OtherTitle is an alternative or localized title.
type OtherTitle struct {
	Title     string `json:"title" validate:"required,min=1,max=255"`
	Country   string `json:"country" validate:"required,iso3166_1_alpha2"`
	Attribute string `json:"attribute,omitempty" validate:"omitempty,oneof=ORIGINAL WORKING INFORMAL FESTIVAL VIDEO_BOX TV"`
}

// Review is a long-form critic review.
type Review struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Review  string `json:"review" validate:"required,min=10,max=20000"`
	Spoiler bool   `json:"spoiler"`
}

// Budget is the production budget in minor units of Currency.
type Budget struct {
	Amount   int64  `json:"amount" validate:"gte=0"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

// BoxOffice is the gross revenue in one country.
type BoxOffice struct {
	Amount  int64  `json:"amount" validate:"gte=0"`
	Country string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Site is a web page about the movie.
type Site struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	Official bool   `json:"official"`
}

// ReleaseDate is the premiere date in one country.
type ReleaseDate struct {
	Date    time.Time `json:"date" validate:"required"`
	Country string    `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Outline is a one-sentence pitch.
type Outline struct {
	Outline string `json:"outline" validate:"required,min=1,max=300"`
}

// Summary is a short plot summary.
type Summary struct {
	Summary string `json:"summary" validate:"required,min=10,max=4000"`
}

// Synopsis is a full plot description.
type Synopsis struct {
	Synopsis string `json:"synopsis" validate:"required,min=10,max=20000"`
}

// Country is a production country.
type Country struct {
	Country string `json:"country" validate:"required,iso3166_1_alpha2"`
}

// Genre is one genre of the movie.
type Genre struct {
	Genre string `json:"genre" validate:"required,oneof=ACTION ADVENTURE ANIMATION BIOGRAPHY COMEDY CRIME DOCUMENTARY DRAMA FAMILY FANTASY HISTORY HORROR MUSICAL MYSTERY ROMANCE SCI_FI SPORT THRILLER WAR WESTERN"`
}

// Language is a spoken language.
type Language struct {
	Language string `json:"language" validate:"required,bcp47_language_tag"`
}

// Photo references an image held by the blob storage collaborator.
type Photo struct {
	FileID   string `json:"file_id" validate:"required,max=255"`
	Provider string `json:"provider,omitempty" validate:"max=50"`
}

// Poster references a poster image held by the blob storage collaborator.
type Poster struct {
	FileID   string `json:"file_id" validate:"required,max=255"`
	Provider string `json:"provider,omitempty" validate:"max=50"`
}

func (*Title) Field() MovieField       { return FieldTitle }
func (*TypeValue) Field() MovieField   { return FieldType }
func (*OtherTitle) Field() MovieField  { return FieldOtherTitle }
func (*Review) Field() MovieField      { return FieldReview }
func (*Budget) Field() MovieField      { return FieldBudget }
func (*BoxOffice) Field() MovieField   { return FieldBoxOffice }
func (*Site) Field() MovieField        { return FieldSite }
func (*ReleaseDate) Field() MovieField { return FieldReleaseDate }
func (*Outline) Field() MovieField     { return FieldOutline }
func (*Summary) Field() MovieField     { return FieldSummary }
func (*Synopsis) Field() MovieField    { return FieldSynopsis }
func (*Country) Field() MovieField     { return FieldCountry }
func (*Genre) Field() MovieField       { return FieldGenre }
func (*Language) Field() MovieField    { return FieldLanguage }
func (*Photo) Field() MovieField       { return FieldPhoto }
func (*Poster) Field() MovieField      { return FieldPoster }

// NewPayload returns an empty payload of the type registered for field.
func NewPayload(field MovieField) (Payload, error) {
	spec, ok := fieldCatalog[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown movie field %q", ErrValidation, field)
	}
	return spec.newPayload(), nil
}

// DecodePayload parses raw JSON into the payload type of field. Unknown keys are rejected.
func DecodePayload(field MovieField, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(field)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("%w: invalid %s value: %v", ErrValidation, field, err)
	}
	return p, nil
}

// DecodeValidPayload decodes raw JSON for field and runs struct validation on the result.
func DecodeValidPayload(ctx context.Context, v *validator.Validate, field MovieField, raw json.RawMessage) (Payload, error) {
	p, err := DecodePayload(field, raw)
	if err != nil {
		return nil, err
	}
	if err := ValidatePayload(ctx, v, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidatePayload runs struct validation on p.
func ValidatePayload(ctx context.Context, v *validator.Validate, p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: empty value", ErrValidation)
	}
	if err := v.StructCtx(ctx, p); err != nil {
		return fmt.Errorf("%w: invalid %s value: %v", ErrValidation, p.Field(), err)
	}
	return nil
}

// EncodePayload serializes p for storage.
func EncodePayload(p Payload) (json.RawMessage, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.Field(), err)
	}
	return raw, nil
}
