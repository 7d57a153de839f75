import "github.com/ZenLiuCN/dyncc"

type TestSample struct{}

func (TestSample) Test() bool {
	return true
}

func NewTestSample() any {
	var _ dyncc.Tester = TestSample{}
	return TestSample{}
}
