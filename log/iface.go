package log

// Logger is the minimal logging surface the server packages depend on.
type Logger interface {
	Printf(string, ...interface{})
	Fatalf(string, ...interface{})
}
