package sample

func NewBad() any {
	return nil
}
