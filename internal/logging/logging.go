// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the process-wide structured logger: a JSON
// handler for production, a TTY-aware colorized key=value handler for
// local/dev use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Options controls the logger New builds.
type Options struct {
	Level     string // "debug", "info", "warn", "error"
	PlainText bool
	Output    io.Writer // defaults to os.Stdout
}

// New returns a configured *slog.Logger. JSON output is the default;
// PlainText switches to a colorized key=value handler suited to an
// interactive terminal.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := parseLevel(opts.Level)
	if opts.PlainText {
		return slog.New(newPlainHandler(out, level))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// plainHandler renders key=value lines, tinting the level token when
// the output is an interactive terminal.
type plainHandler struct {
	out   io.Writer
	level slog.Leveler
	color bool
	attrs []slog.Attr
	group string
}

func newPlainHandler(out io.Writer, level slog.Leveler) *plainHandler {
	colorize := false
	if f, ok := out.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) && os.Getenv("NO_COLOR") == ""
	}
	return &plainHandler{out: out, level: level, color: colorize}
}

func (h *plainHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *plainHandler) Handle(_ context.Context, r slog.Record) error {
	levelStr := levelTag(r.Level)
	if h.color {
		levelStr = colorForLevel(r.Level).Sprint(levelStr)
	}
	line := fmt.Sprintf("%s %-5s %s", r.Time.Format("2006-01-02T15:04:05.000Z07:00"), levelStr, r.Message)
	for _, a := range h.attrs {
		line += " " + formatAttr(h.group, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		line += " " + formatAttr(h.group, a)
		return true
	})
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *plainHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *plainHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group == "" {
		next.group = name
	} else {
		next.group = next.group + "." + name
	}
	return &next
}

func formatAttr(group string, a slog.Attr) string {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	return fmt.Sprintf("%s=%v", key, a.Value.Any())
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelDebug && l < slog.LevelInfo:
		return "DEBUG"
	default:
		return "INFO"
	}
}

func colorForLevel(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case l >= slog.LevelDebug && l < slog.LevelInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgGreen)
	}
}
