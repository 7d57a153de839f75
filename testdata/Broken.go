package sample

func NewBroken() any {
	return undefinedValue +
}
