package model

import "time"

// Course is a purchasable piece of content.
// Price is expressed in minor currency units.
type Course struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Purchased int64     `json:"purchased"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShortID returns the abbreviated identifier shown to customers.
func (c *Course) ShortID() string {
	if len(c.ID) <= 6 {
		return c.ID
	}
	return c.ID[:6]
}
