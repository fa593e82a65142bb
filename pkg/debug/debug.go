// Package debug appends timestamped, caller-tagged lines to un52_debug.log.
// Wire-level and transport noise goes here instead of the user's terminal.
package debug

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const logName = "un52_debug.log"

var (
	initOnce sync.Once
	mu       sync.Mutex
	fh       *os.File
)

func start() {
	var err error
	fh, err = os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("error opening %s: %v", logName, err)
	}
}

func Log(msg string) {
	initOnce.Do(start)
	timeStr := time.Now().Format("2006-01-02 15:04:05.000")
	if _, fullPath, line, ok := runtime.Caller(1); ok {
		LogRaw(fmt.Sprintf("%s %s:%d %s", timeStr, filepath.Base(fullPath), line, msg))
		return
	}
	LogRaw(timeStr + " " + msg)
}

func LogRaw(msg string) {
	initOnce.Do(start)
	mu.Lock()
	defer mu.Unlock()
	if fh == nil {
		return
	}
	fh.WriteString(msg + "\n")
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if fh == nil {
		return
	}
	fh.Sync()
	fh.Close()
	fh = nil
}
