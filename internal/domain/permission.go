package domain

import (
	"fmt"
	"sort"
)

// UserMoviePermission is a capability granted to a user for moderating movie data.
type UserMoviePermission string

const (
	PermissionAll         UserMoviePermission = "ALL"
	PermissionNewMovie    UserMoviePermission = "NEW_MOVIE"
	PermissionTitle       UserMoviePermission = "TITLE"
	PermissionType        UserMoviePermission = "TYPE"
	PermissionOtherTitle  UserMoviePermission = "OTHER_TITLE"
	PermissionDescription UserMoviePermission = "DESCRIPTION"
	PermissionReview      UserMoviePermission = "REVIEW"
	PermissionBudget      UserMoviePermission = "BUDGET"
	PermissionBoxOffice   UserMoviePermission = "BOX_OFFICE"
	PermissionSite        UserMoviePermission = "SITE"
	PermissionReleaseDate UserMoviePermission = "RELEASE_DATE"
	PermissionOutline     UserMoviePermission = "OUTLINE"
	PermissionSummary     UserMoviePermission = "SUMMARY"
	PermissionSynopsis    UserMoviePermission = "SYNOPSIS"
	PermissionCountry     UserMoviePermission = "COUNTRY"
	PermissionGenre       UserMoviePermission = "GENRE"
	PermissionLanguage    UserMoviePermission = "LANGUAGE"
	PermissionPhoto       UserMoviePermission = "PHOTO"
	PermissionPoster      UserMoviePermission = "POSTER"
)

var allPermissions = []UserMoviePermission{
	PermissionAll, PermissionNewMovie, PermissionTitle, PermissionType, PermissionOtherTitle,
	PermissionDescription, PermissionReview, PermissionBudget, PermissionBoxOffice, PermissionSite,
	PermissionReleaseDate, PermissionOutline, PermissionSummary, PermissionSynopsis, PermissionCountry,
	PermissionGenre, PermissionLanguage, PermissionPhoto, PermissionPoster,
}

// AllPermissions returns every known permission.
func AllPermissions() []UserMoviePermission {
	out := make([]UserMoviePermission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Valid reports whether p is a known permission.
func (p UserMoviePermission) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermissions validates raw permission names and returns them deduplicated and sorted.
func ParsePermissions(raw []string) ([]UserMoviePermission, error) {
	seen := make(map[UserMoviePermission]struct{}, len(raw))
	out := make([]UserMoviePermission, 0, len(raw))
	for _, r := range raw {
		p := UserMoviePermission(r)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrValidation, r)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Permissions is the set of capabilities held by one user.
type Permissions []UserMoviePermission

// Has reports whether the set contains p.
func (ps Permissions) Has(p UserMoviePermission) bool {
	for _, held := range ps {
		if held == p {
			return true
		}
	}
	return false
}

// Strings returns the permission names, for storage and token claims.
func (ps Permissions) Strings() []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// CanVerify reports whether a user holding perms may verify contributions to field.
// The user needs at least one of the field's required permissions; NEW_MOVIE never qualifies.
func CanVerify(perms Permissions, field MovieField) bool {
	spec, ok := fieldCatalog[field]
	if !ok {
		return false
	}
	return perms.Has(PermissionAll) || perms.Has(spec.permission)
}

// CanVerifyMovie reports whether a user holding perms may accept or reject a newly submitted movie.
// This is a separate capability from field verification.
func CanVerifyMovie(perms Permissions) bool {
	return perms.Has(PermissionAll) || perms.Has(PermissionNewMovie)
}
