package handlers

import (
	"github.com/google/uuid"
)

// parsePair парсит два UUID из строк запроса.
func parsePair(first, second string) (uuid.UUID, uuid.UUID, error) {
	a, err := uuid.Parse(first)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	b, err := uuid.Parse(second)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return a, b, nil
}
