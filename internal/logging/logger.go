// Package logging реализует уровневое логирование с
// компонентными логгерами и опциональной записью в файл.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel представляет уровень логирования
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки, по умолчанию INFO
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger — логгер для отдельного компонента сервера
type Logger struct {
	component string
}

var (
	mu         sync.Mutex
	minLevel   = INFO
	consoleOut io.Writer = os.Stdout
	fileOut    *os.File
)

// SetLevel задаёт минимальный уровень вывода
func SetLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = level
}

// SetupFileOutput включает дублирование логов в файл внутри dir
func SetupFileOutput(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("создание каталога логов: %w", err)
	}

	name := filepath.Join(dir, fmt.Sprintf("server_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("открытие файла логов: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if fileOut != nil {
		fileOut.Close()
	}
	fileOut = f
	return nil
}

// Close закрывает файловый вывод
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if fileOut != nil {
		fileOut.Close()
		fileOut = nil
	}
}

// NewLogger создаёт логгер для компонента
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if level < minLevel {
		return
	}

	line := fmt.Sprintf("%s [%s] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		level.String(),
		l.component,
		fmt.Sprintf(format, args...))

	fmt.Fprint(consoleOut, line)
	if fileOut != nil {
		fmt.Fprint(fileOut, line)
	}
}

// Debug выводит отладочное сообщение
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info выводит информационное сообщение
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn выводит предупреждение
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error выводит сообщение об ошибке
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// HexDump выводит данные в hex формате на уровне DEBUG (для отладки протокола)
func (l *Logger) HexDump(prefix string, data []byte) {
	if len(data) > 64 {
		data = data[:64]
	}
	var sb strings.Builder
	for i, b := range data {
		if i > 0 && i%16 == 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%02x ", b)
	}
	l.Debug("%s (%d байт):\n%s", prefix, len(data), sb.String())
}
