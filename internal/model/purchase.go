package model

type Purchase struct {
	UserID      string `json:"user_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	PurchasedAt int64  `json:"purchased_at"`
}
