package domain

import "strings"

type Address struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country,omitempty"`
}

// Validate reports every empty required field at once.
func (a Address) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"address_line_1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &IncompleteAddressError{Missing: missing}
	}
	return nil
}

// Jurisdiction is the normalized tax key of the address.
func (a Address) Jurisdiction() string {
	return strings.ToUpper(strings.TrimSpace(a.State))
}

func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type ShippingMethod struct {
	ID            string `json:"id" mapstructure:"id"`
	Name          string `json:"name" mapstructure:"name"`
	Price         Money  `json:"price" mapstructure:"price"`
	EstimatedDays int    `json:"estimated_days" mapstructure:"estimated_days"`
	IsExpress     bool   `json:"is_express" mapstructure:"is_express"`
}
