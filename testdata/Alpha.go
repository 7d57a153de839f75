package sample

import "github.com/ZenLiuCN/dyncc"

type Alpha struct {
	name string
}

func (p Alpha) Name() string {
	return p.name
}

func (p Alpha) Action() string {
	return "alpha:" + p.name
}

func NewAlpha() any {
	var p dyncc.Proto = Alpha{name: "alpha"}
	return p
}
