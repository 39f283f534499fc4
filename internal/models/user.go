package models

// User is the identity record served by the user-store collaborator.
// The messaging core only reads display fields, never mutates them.
type User struct {
	ID              UserID           `json:"id"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	Role            string           `json:"role"`
	LandlordProfile *LandlordProfile `json:"landlord_profile,omitempty"`
}

type LandlordProfile struct {
	CompanyName string `json:"company_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
