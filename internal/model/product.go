package model

type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Ctime    int64  `json:"ctime"`
	Mtime    int64  `json:"mtime"`
}
