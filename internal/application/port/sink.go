package port

// Sink 结果输出
type Sink interface {
	WriteResult(v any) error
	WriteText(s string) error
}
