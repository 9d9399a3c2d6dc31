package logger

// fieldLogger attaches a fixed set of fields to every entry it emits.
// Fields given at the call site win over the attached ones.
type fieldLogger struct {
	service *Service
	fields  []Field
}

func newFieldLogger(service *Service, fields []Field) *fieldLogger {
	return &fieldLogger{
		service: service,
		fields:  append([]Field(nil), fields...),
	}
}

func (l *fieldLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *fieldLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *fieldLogger) Warning(msg string, fields ...Field) {
	l.Log(LogLevelWarning, msg, fields...)
}

func (l *fieldLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *fieldLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
}

func (l *fieldLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.service.logWith(level, msg, l.fields, fields)
}

func (l *fieldLogger) WithFields(fields ...Field) Logger {
	combined := make([]Field, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)
	return newFieldLogger(l.service, combined)
}
