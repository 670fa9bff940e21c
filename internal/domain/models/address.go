package models

// Address - адрес доставки, принадлежащий пользователю
type Address struct {
	ID           int64
	UserID       int64
	FullName     string
	Phone        string
	AddressLine1 string
	AddressLine2 *string
	City         string
	State        string
	Pincode      string
	IsDefault    bool
}

// ShippingAddress - копия адреса, сохранённая в заказе на момент его создания
type ShippingAddress struct {
	FullName     string  `json:"full_name"`
	Phone        string  `json:"phone"`
	AddressLine1 string  `json:"address_line1"`
	AddressLine2 *string `json:"address_line2"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Pincode      string  `json:"pincode"`
}

// Snapshot копирует поля адреса по значению
func (a *Address) Snapshot() ShippingAddress {
	s := ShippingAddress{
		FullName:     a.FullName,
		Phone:        a.Phone,
		AddressLine1: a.AddressLine1,
		City:         a.City,
		State:        a.State,
		Pincode:      a.Pincode,
	}
	if a.AddressLine2 != nil {
		line2 := *a.AddressLine2
		s.AddressLine2 = &line2
	}
	return s
}
