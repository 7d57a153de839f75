package sample

import (
	"strings"

	"github.com/ZenLiuCN/dyncc"
)

type Beta struct {
	name string
}

func (p Beta) Name() string {
	return p.name
}

func (p Beta) Action() string {
	return strings.ToUpper(p.name)
}

func NewBeta() any {
	var p dyncc.Proto = Beta{name: "beta"}
	return p
}
