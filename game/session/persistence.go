package session

import (
	"github.com/wricardo/boardgames/game/service"
)

// CaroStore is the persistence a CaroManager needs: a transaction runner for
// the create step and the Caro session repository.
type CaroStore interface {
	service.Transactor
	service.CaroRepository
}

// Line98Store is the persistence a Line98Manager needs.
type Line98Store interface {
	service.Transactor
	service.Line98Repository
}
