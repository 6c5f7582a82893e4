/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the structured, leveled logging façade used throughout
// this module, backed by logrus. It is the reactor's one logging
// dependency: every package that needs to log takes a logger.Logger (or a
// logger.FuncLog factory) rather than reaching for the standard log
// package or a bare logrus.Logger directly.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	logfld "github.com/sabouaram/reactor/logger/fields"
	loglvl "github.com/sabouaram/reactor/logger/level"
)

// FuncLog returns a Logger, used for lazy/deferred logger injection.
type FuncLog func() Logger

// Logger is the minimal structured logging contract this module's packages
// depend on. It intentionally exposes fewer knobs than a general-purpose
// logging façade: level filtering, a base field set, and one method per
// severity.
type Logger interface {
	io.Writer

	SetLevel(lvl loglvl.Level)
	GetLevel() loglvl.Level

	SetFields(f logfld.Fields)
	GetFields() logfld.Fields

	// Clone returns a logger carrying the same destination and level but an
	// independent field set, so a call site can attach request-scoped
	// fields without mutating the shared base logger.
	Clone() Logger

	Debug(message string, fields logfld.Fields)
	Info(message string, fields logfld.Fields)
	Warning(message string, fields logfld.Fields)
	Error(message string, fields logfld.Fields)
	Fatal(message string, fields logfld.Fields)
}

type lgr struct {
	mu  sync.RWMutex
	out *logrus.Logger
	fld logfld.Fields
}

// New builds a Logger writing to w (os.Stderr if nil) at the given level.
func New(lvl loglvl.Level, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.Logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &lgr{out: l, fld: logfld.New()}
}

// Default builds an InfoLevel logger writing to stderr.
func Default() Logger {
	return New(loglvl.InfoLevel, os.Stderr)
}

func (o *lgr) Write(p []byte) (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.out.Out.Write(p)
}

func (o *lgr) SetLevel(lvl loglvl.Level) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.out.SetLevel(lvl.Logrus())
}

func (o *lgr) GetLevel() loglvl.Level {
	o.mu.RLock()
	defer o.mu.RUnlock()
	switch o.out.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return loglvl.DebugLevel
	case logrus.InfoLevel:
		return loglvl.InfoLevel
	case logrus.WarnLevel:
		return loglvl.WarnLevel
	case logrus.ErrorLevel:
		return loglvl.ErrorLevel
	case logrus.FatalLevel:
		return loglvl.FatalLevel
	case logrus.PanicLevel:
		return loglvl.PanicLevel
	default:
		return loglvl.NilLevel
	}
}

func (o *lgr) SetFields(f logfld.Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fld = f.Clone()
}

func (o *lgr) GetFields() logfld.Fields {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fld.Clone()
}

func (o *lgr) Clone() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return &lgr{out: o.out, fld: o.fld.Clone()}
}

func (o *lgr) entry(fields logfld.Fields) *logrus.Entry {
	o.mu.RLock()
	base := o.fld
	out := o.out
	o.mu.RUnlock()
	if out.GetLevel() > logrus.TraceLevel {
		// NilLevel sits above every logrus level; emit nothing for it.
		out = logrus.New()
		out.SetOutput(io.Discard)
	}
	return out.WithFields(base.Merge(fields).Logrus())
}

func (o *lgr) Debug(message string, fields logfld.Fields)   { o.entry(fields).Debug(message) }
func (o *lgr) Info(message string, fields logfld.Fields)    { o.entry(fields).Info(message) }
func (o *lgr) Warning(message string, fields logfld.Fields) { o.entry(fields).Warning(message) }
func (o *lgr) Error(message string, fields logfld.Fields)   { o.entry(fields).Error(message) }
func (o *lgr) Fatal(message string, fields logfld.Fields)   { o.entry(fields).Fatal(message) }
