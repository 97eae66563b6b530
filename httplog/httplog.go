// Copyright 2022 The forwarder Authors. All rights reserved.
// Use of this source code is governed by a MPL
// license that can be found in the LICENSE file.

package httplog

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/saucelabs/forwarder-krb5/middleware"
)

type Mode string

const (
	None     Mode = "none"
	ShortURL Mode = "short_url"
	URL      Mode = "url"
	Headers  Mode = "headers"
	Body     Mode = "body"
	Errors   Mode = "errors"
)

// DefaultMode is used when a mode is not explicitly configured.
const DefaultMode = Errors

func (m Mode) String() string {
	return string(m)
}

func (m Mode) Validate() error {
	switch m {
	case None, ShortURL, URL, Headers, Body, Errors:
		return nil
	}

	return fmt.Errorf("log mode %s not found", m)
}

// SplitNameMode splits a "name:mode" string into its parts. If no mode
// separator is present the whole string is treated as the mode and name
// is returned empty, matching the shorthand accepted on the command line.
func SplitNameMode(s string) (string, Mode, error) {
	name, modeStr, found := strings.Cut(s, ":")
	if !found {
		name, modeStr = "", name
	}

	mode := Mode(modeStr)
	if err := mode.Validate(); err != nil {
		return "", "", err
	}

	return name, mode, nil
}

type Logger struct {
	log  func(format string, args ...interface{})
	mode Mode
}

// NewLogger returns a logger that logs HTTP requests and responses.
func NewLogger(logFunc func(format string, args ...interface{}), mode Mode) *Logger {
	return &Logger{
		log:  logFunc,
		mode: mode,
	}
}

func (l *Logger) LogFunc() middleware.Logger {
	switch l.mode {
	case "", None:
		return func(e middleware.LogEntry) {}
	case ShortURL:
		return func(e middleware.LogEntry) {
			var w logWriter
			w.ShortURLLine(e)
			l.log(w.String())
		}
	case URL:
		return func(e middleware.LogEntry) {
			var w logWriter
			w.URLLine(e)
			l.log(w.String())
		}
	case Headers:
		return func(e middleware.LogEntry) {
			var w logWriter
			w.URLLine(e)
			w.Dump(e)
			l.log(w.String())
		}
	case Body:
		return func(e middleware.LogEntry) {
			w := logWriter{body: true}
			w.URLLine(e)
			w.Dump(e)
			l.log(w.String())
		}
	case Errors:
		return func(e middleware.LogEntry) {
			if e.Status < http.StatusInternalServerError {
				return
			}

			var w logWriter
			w.URLLine(e)
			w.Dump(e)
			l.log(w.String())
		}
	default:
		panic(fmt.Sprintf("unknown log mode %s", l.mode))
	}
}
