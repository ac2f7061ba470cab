package server

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/notestore"
)

type Services struct {
	Notes *notestore.Store
}

func NewServices(db *sqlx.DB) (*Services, error) {
	notes, err := notestore.New(db)
	if err != nil {
		return nil, fmt.Errorf("note store: %w", err)
	}

	return &Services{
		Notes: notes,
	}, nil
}
