package console

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tradeocr/internal/application/port"
)

// Sink 命令结果输出到终端：JSON 或带颜色的文本
type Sink struct {
	out       io.Writer
	jsonMode  bool
	formatter *Formatter
}

func NewSink(out io.Writer, jsonMode, color bool) port.Sink {
	if out == nil {
		out = os.Stdout
	}
	return &Sink{out: out, jsonMode: jsonMode, formatter: NewFormatter(color)}
}

func (s *Sink) WriteResult(v any) error {
	if s.jsonMode {
		enc := json.NewEncoder(s.out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := io.WriteString(s.out, s.formatter.Render(v))
	return err
}

func (s *Sink) WriteText(line string) error {
	_, err := fmt.Fprintln(s.out, line)
	return err
}
