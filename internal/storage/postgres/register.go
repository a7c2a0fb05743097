package postgres

import "h2scenarios/internal/storage"

func init() {
	storage.Register("postgres", New)
}
