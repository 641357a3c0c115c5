package logger

import (
	"encoding/json"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

//nolint:gochecknoglobals // static palette shared by all encoders
var levelColors = map[zapcore.Level]*color.Color{
	zapcore.DebugLevel:  color.New(color.FgCyan),
	zapcore.InfoLevel:   color.New(color.FgGreen),
	zapcore.WarnLevel:   color.New(color.FgYellow),
	zapcore.ErrorLevel:  color.New(color.FgRed, color.Bold),
	zapcore.DPanicLevel: color.New(color.FgRed, color.Bold),
	zapcore.PanicLevel:  color.New(color.FgRed, color.Bold),
	zapcore.FatalLevel:  color.New(color.FgMagenta, color.Bold),
}

// devEncoder prints the console line with a colored level and the structured
// fields as indented JSON below it.
type devEncoder struct {
	zapcore.Encoder
	fields zapcore.Encoder
	pool   buffer.Pool
}

func newDevEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &devEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		fields:  zapcore.NewJSONEncoder(cfg),
		pool:    buffer.NewPool(),
	}
}

// Clone keeps derived loggers on the dev encoder.
func (e *devEncoder) Clone() zapcore.Encoder {
	return &devEncoder{
		Encoder: e.Encoder.Clone(),
		fields:  e.fields.Clone(),
		pool:    e.pool,
	}
}

func (e *devEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	head, err := e.Encoder.EncodeEntry(entry, nil)
	if err != nil {
		return nil, err
	}
	line := strings.TrimRight(head.String(), "\n")
	head.Free()

	if c, ok := levelColors[entry.Level]; ok {
		lvl := entry.Level.CapitalString()
		line = strings.Replace(line, lvl, c.Sprint(lvl), 1)
	}

	out := e.pool.Get()
	out.AppendString(line)

	if len(fields) > 0 {
		out.AppendString(e.encodeFields(entry, fields))
	}

	out.AppendString("\n")
	return out, nil
}

func (e *devEncoder) encodeFields(entry zapcore.Entry, fields []zapcore.Field) string {
	raw, err := e.fields.EncodeEntry(entry, fields)
	if err != nil {
		return ""
	}
	defer raw.Free()

	var m map[string]any
	if err = json.Unmarshal(raw.Bytes(), &m); err != nil {
		return " " + strings.TrimRight(raw.String(), "\n")
	}
	for _, k := range []string{messageKey, levelKey, nameKey, timeKey} {
		delete(m, k)
	}
	if len(m) == 0 {
		return ""
	}

	pretty, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return " " + strings.TrimRight(raw.String(), "\n")
	}
	return "\n" + string(pretty)
}
