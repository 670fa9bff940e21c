package models

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User представляет пользователя магазина
type User struct {
	ID       int64
	Name     string
	Email    string
	PassHash []byte
	Role     string
}

// Customer - данные покупателя, которые подтягиваются к заказу для чека и админки
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
