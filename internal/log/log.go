// Package log writes one JSON object per line through the standard logger.
package log

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

type entry struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	ReqID  string         `json:"req_id,omitempty"`
	IP     string         `json:"ip,omitempty"`
	Method string         `json:"method,omitempty"`
	Path   string         `json:"path,omitempty"`
	Status int            `json:"status,omitempty"`
	Action string         `json:"action"`
	Err    string         `json:"err,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Setup tees log output to path (append) in addition to stdout.
// The returned closer releases the file; it is a no-op when path is empty.
func Setup(path string) (io.Closer, error) {
	log.SetFlags(0)
	if path == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return io.NopCloser(nil), err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return f, nil
}

func write(level string, c *fiber.Ctx, action string, err error, fields map[string]any) {
	e := entry{TS: time.Now().UTC().Format(time.RFC3339Nano), Level: level, Action: action, Fields: fields}
	if c != nil {
		e.IP = c.IP()
		e.Method = c.Method()
		e.Path = c.Path()
		e.Status = c.Response().StatusCode()
		if rid, ok := c.Locals("requestid").(string); ok {
			e.ReqID = rid
		}
	}
	if err != nil {
		e.Err = err.Error()
	}
	b, mErr := json.Marshal(e)
	if mErr != nil {
		log.Printf(`{"level":"error","action":"log.marshal","err":%q}`, mErr.Error())
		return
	}
	log.Println(string(b))
}

// Info records routine events. c may be nil outside a request.
func Info(c *fiber.Ctx, action string, fields map[string]any) { write("info", c, action, nil, fields) }

// Audit records business facts such as committed purchases.
func Audit(c *fiber.Ctx, action string, fields map[string]any) { write("audit", c, action, nil, fields) }

// Warn records rejected input and abuse signals.
func Warn(c *fiber.Ctx, action string, fields map[string]any) { write("warn", c, action, nil, fields) }

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	write("error", c, action, err, fields)
}
