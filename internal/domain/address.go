package domain

type ShippingAddress struct {
	ID                int64  `json:"id,omitempty"`
	ContactName       string `json:"contactName"`
	Phone             string `json:"phone"`
	AddressLine1      string `json:"addressLine1"`
	AddressLine2      string `json:"addressLine2,omitempty"`
	City              string `json:"city"`
	ZipCode           string `json:"zipCode"`
	CountryID         int64  `json:"countryId,omitempty"`
	StateOrProvinceID int64  `json:"stateOrProvinceId,omitempty"`
	DistrictID        int64  `json:"districtId,omitempty"`
}
