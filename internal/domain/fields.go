package domain

import "fmt"

// APIVariant selects the wire naming convention of the remote API.
type APIVariant string

const (
	VariantCamel APIVariant = "camel"
	VariantSnake APIVariant = "snake"
)

// FieldMap maps logical response fields to their wire names.
type FieldMap struct {
	RefreshToken string
	AccessToken  string
	Link         string
	Next         string
	Collections  map[Resource]string
}

// Collection returns the wire name of the entries array for a resource.
func (f FieldMap) Collection(r Resource) string {
	if name, ok := f.Collections[r]; ok {
		return name
	}
	return string(r)
}

var (
	// CamelCaseFields matches the API version answering {refreshToken}.
	CamelCaseFields = FieldMap{
		RefreshToken: "refreshToken",
		AccessToken:  "accessToken",
		Link:         "link",
		Next:         "next",
		Collections: map[Resource]string{
			ResourceAccounts:     "account",
			ResourceTransactions: "transactions",
		},
	}

	// SnakeCaseFields matches the API version answering {refresh_token}.
	SnakeCaseFields = FieldMap{
		RefreshToken: "refresh_token",
		AccessToken:  "access_token",
		Link:         "link",
		Next:         "next",
		Collections: map[Resource]string{
			ResourceAccounts:     "account",
			ResourceTransactions: "transactions",
		},
	}
)

// FieldMapFor returns the preset for the given variant.
func FieldMapFor(variant APIVariant) (FieldMap, error) {
	switch variant {
	case VariantCamel, "":
		return CamelCaseFields, nil
	case VariantSnake:
		return SnakeCaseFields, nil
	}
	return FieldMap{}, &ErrValidation{
		Field:   "api_variant",
		Message: fmt.Sprintf("unknown variant %q (want %q or %q)", variant, VariantCamel, VariantSnake),
	}
}
