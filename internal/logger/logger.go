// Package logger configures the engine's logrus logger: quiet on the
// terminal, everything in a rotated file next to the database.
package logger

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a new well configured logger writing to the given file.
func New(filename string) logrus.FieldLogger {
	formatter := new(logFormatter)

	log := logrus.New()
	log.SetOutput(io.Discard) // stdout & stderr stay clean for the prompt
	log.SetFormatter(formatter)
	log.Hooks.Add(&fileHook{
		rotate: &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    20, // megabytes
			MaxBackups: 2,
			MaxAge:     10, //days
		},
		formatter: formatter,
	})

	return log
}

// Dump renders any value for log output.
func Dump(v any) string {
	return litter.Sdump(v)
}

////////////////////
//                //
// File hook      //
//                //
////////////////////

type fileHook struct {
	sync.Mutex
	rotate    *lumberjack.Logger
	formatter logrus.Formatter
}

// Fire opens the file, writes to the file and closes the file.
// Whichever user is running the function needs write permissions to the file or directory if the file does not yet exist.
func (hook *fileHook) Fire(entry *logrus.Entry) error {
	hook.Lock()
	defer hook.Unlock()

	// use our formatter instead of entry.String()
	msg, err := hook.formatter.Format(entry)
	if err != nil {
		log.Println("failed to generate string for entry:", err)
		return err
	}

	_, err = hook.rotate.Write(msg)
	return err
}

// Levels returns configured log levels.
func (hook *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

////////////////////
//                //
// Log formatter  //
//                //
////////////////////

type logFormatter struct{}

// Format implements Logrus formatter.
func (f *logFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	fields := ""
	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys) // stable output across runs

		fs := make([]string, 0, len(keys))
		for _, k := range keys {
			fs = append(fs, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		fields = fmt.Sprintf(" (%s)", strings.Join(fs, ", "))
	}

	data := fmt.Sprintf("[%s] %+5s: %s%s\n",
		entry.Time.Format(time.RFC3339),
		strings.ToUpper(entry.Level.String()),
		entry.Message,
		fields,
	)
	return []byte(data), nil
}
