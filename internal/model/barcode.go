package model

// BarcodeProduct is one entry of a family's barcode library.
type BarcodeProduct struct {
	FamilyID string `json:"family_id" validate:"required"`
	Code     string `json:"code" validate:"required,max=64"`
	Name     string `json:"name" validate:"required,max=120"`
	Category string `json:"category" validate:"max=60"`
	Unit     string `json:"unit" validate:"max=20"`
}
