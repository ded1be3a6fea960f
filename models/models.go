// Package models holds the gorm entities of the cash-advance backend.
package models

// All lists every entity in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Application{}, &Transaction{}, &RefreshToken{}}
}
