// Package storage provides sqlx-backed repositories over the PostgreSQL
// schema applied by the migrations directory.
package storage

import (
	"github.com/jmoiron/sqlx"
)

// Storage bundles all repositories over one connection pool.
type Storage struct {
	Users      *UsersRepo
	Reports    *ReportsRepo
	Guarantors *GuarantorsRepo
	Chats      *ChatsRepo
}

// New wires the repositories.
func New(db *sqlx.DB) *Storage {
	return &Storage{
		Users:      &UsersRepo{db: db},
		Reports:    &ReportsRepo{db: db},
		Guarantors: &GuarantorsRepo{db: db},
		Chats:      &ChatsRepo{db: db},
	}
}
