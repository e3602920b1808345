// Package nlog is the core's logger: buffered, timestamped, file-backed
// with size-based rotation, and a stderr fallback before flags are parsed.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spiderwiz/fabric/cmn/atomic"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

// MaxSize is the per-severity log file size (bytes) that triggers rotation.
var MaxSize int64 = 4 * 1024 * 1024

var (
	toStderr     bool
	alsoToStderr bool
	logDir       string
	role         string
	title        string

	mu    sync.Mutex
	files [3]*logFile
)

type logFile struct {
	f       *os.File
	buf     bytes.Buffer
	written int64
	last    atomic.Int64
}

func InitFlags(flset *flag.FlagSet) {
	flset.BoolVar(&toStderr, "logtostderr", false, "log to standard error instead of files")
	flset.BoolVar(&alsoToStderr, "alsologtostderr", false, "log to standard error as well as files")
}

// SetLogDirRole points the logger at a log directory and a short role tag
// (e.g. "proxy", "node") used in rotated file names.
func SetLogDirRole(dir, r string) { logDir, role = dir, r }

func SetTitle(s string) { title = s }

func InfoLogName() string { return sname() + ".INFO" }
func ErrLogName() string  { return sname() + ".ERROR" }

func InfoDepth(depth int, args ...any)    { logit(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { logit(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { logit(sevInfo, 0, format, args...) }
func Warningln(args ...any)               { logit(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { logit(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { logit(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { logit(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { logit(sevErr, 0, format, args...) }

func logit(sev severity, depth int, format string, args ...any) {
	line := render(sev, depth+1, format, args...)

	if !flag.Parsed() || toStderr {
		os.Stderr.WriteString(line)
		return
	}
	if alsoToStderr || sev >= sevWarn {
		os.Stderr.WriteString(line)
	}

	mu.Lock()
	defer mu.Unlock()
	write(sevInfo, line)
	if sev >= sevWarn {
		write(sevErr, line)
	}
}

// under mu
func write(sev severity, line string) {
	lf := files[sev]
	if lf == nil {
		lf = &logFile{}
		files[sev] = lf
	}
	lf.buf.WriteString(line)
	lf.written += int64(len(line))
	lf.last.Store(time.Now().UnixNano())
	if lf.f == nil || lf.written >= MaxSize {
		rotate(sev, lf)
	}
	if lf.f != nil {
		lf.f.WriteString(line)
	}
}

// under mu
func rotate(sev severity, lf *logFile) {
	if lf.f != nil {
		lf.f.Sync()
		lf.f.Close()
	}
	name, _ := logfname(sevTag(sev), time.Now())
	var path string
	if logDir != "" {
		path = filepath.Join(logDir, name)
	} else {
		path = name
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nlog: cannot open %s: %v\n", path, err)
		return
	}
	lf.f = f
	lf.written = 0
	hdr := fmt.Sprintf("Log file created at: %s\nRunning on: %s/%s\n",
		time.Now().Format("2006/01/02 15:04:05"), runtime.GOOS, runtime.GOARCH)
	if title != "" {
		hdr += title + "\n"
	}
	f.WriteString(hdr)
}

// Flush writes buffered content to disk; pass true on process exit to also
// sync and close the underlying files.
func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	mu.Lock()
	defer mu.Unlock()
	for _, lf := range files {
		if lf == nil || lf.f == nil {
			continue
		}
		lf.f.Sync()
		if ex {
			lf.f.Close()
		}
	}
}

func Since() time.Duration {
	now := time.Now().UnixNano()
	var max int64
	for _, lf := range files {
		if lf == nil {
			continue
		}
		if d := now - lf.last.Load(); d > max {
			max = d
		}
	}
	return time.Duration(max)
}

func sevTag(sev severity) string {
	switch sev {
	case sevWarn:
		return "WARN"
	case sevErr:
		return "ERROR"
	default:
		return "INFO"
	}
}

func sname() string {
	if role == "" {
		return "fabric"
	}
	return "fabric." + role
}

var pid = os.Getpid()

func logfname(tag string, t time.Time) (name, link string) {
	s := sname()
	host, _ := os.Hostname()
	name = fmt.Sprintf("%s.%s.%s.%02d%02d-%02d%02d%02d.%d",
		s, host, tag, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), pid)
	return name, s + "." + tag
}

func render(sev severity, depth int, format string, args ...any) string {
	var b strings.Builder
	b.WriteByte(sevChar[sev])
	b.WriteByte(' ')
	b.WriteString(time.Now().Format("15:04:05.000000"))
	b.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(depth + 2); ok {
		if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
			fn = fn[idx+1:]
		}
		b.WriteString(fn)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(ln))
		b.WriteByte(' ')
	}
	if format == "" {
		fmt.Fprintln(&b, args...)
	} else {
		fmt.Fprintf(&b, format, args...)
		if !strings.HasSuffix(format, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
