package sandbox

import (
	"io"
	"os"
	"testing"

	"emperror.dev/errors"
	. "github.com/franela/goblin"
)

// stackTracer is implemented by errors carrying a recorded stack trace.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

func TestErrors(t *testing.T) {
	g := Goblin(t)

	g.Describe("newError", func() {
		g.It("attaches a stack trace to the error", func() {
			err := newError(ErrCodeNotExist, nil, "foo/bar.txt")

			var tracer stackTracer
			g.Assert(errors.As(err, &tracer)).IsTrue()
		})

		g.It("does not wrap an error that is already a sandbox error", func() {
			orig := newError(ErrCodeDenylistFile, nil, "foo.txt")
			err := newError(ErrCodeUnknownError, orig, "foo.txt")

			g.Assert(IsErrorCode(err, ErrCodeDenylistFile)).IsTrue()
			g.Assert(IsErrorCode(err, ErrCodeUnknownError)).IsFalse()
		})

		g.It("unwraps to the underlying cause", func() {
			err := newError(ErrCodeUnknownError, io.ErrUnexpectedEOF, "foo.txt")
			g.Assert(errors.Is(err, io.ErrUnexpectedEOF)).IsTrue()
		})
	})

	g.Describe("IsErrorCode", func() {
		g.It("matches the code through wrapping layers", func() {
			err := newError(ErrCodeSizeLimit, nil, "big.bin")
			wrapped := errors.Wrap(err, "outer context")

			g.Assert(IsErrorCode(wrapped, ErrCodeSizeLimit)).IsTrue()
			g.Assert(IsErrorCode(wrapped, ErrCodeNotExist)).IsFalse()
		})

		g.It("is false for nil and for foreign errors", func() {
			g.Assert(IsErrorCode(nil, ErrCodeNotExist)).IsFalse()
			g.Assert(IsErrorCode(io.EOF, ErrCodeNotExist)).IsFalse()
		})
	})

	g.Describe("NewBadPathResolution", func() {
		g.It("reports the requested path and the resolved location", func() {
			err := NewBadPathResolution("../escape", "/etc/passwd")
			g.Assert(err.Error()).Equal("sandbox: path [../escape] resolves to a location outside the sandbox root: /etc/passwd")
		})

		g.It("reports <empty> when the resolved location is unknown", func() {
			err := NewBadPathResolution("../escape", "")
			g.Assert(err.Error()).Equal("sandbox: path [../escape] resolves to a location outside the sandbox root: <empty>")
		})
	})

	g.Describe("wrapError", func() {
		g.It("passes nil and sandbox errors through untouched", func() {
			g.Assert(wrapError(nil, "foo.txt")).IsNil()

			orig := newError(ErrCodeIsDirectory, nil, "foo")
			g.Assert(wrapError(orig, "foo") == orig).IsTrue()
		})

		g.It("converts os.ErrNotExist into a NotExist error", func() {
			err := wrapError(os.ErrNotExist, "gone.txt")
			g.Assert(IsErrorCode(err, ErrCodeNotExist)).IsTrue()
		})

		g.It("converts anything else into an unknown error keeping the cause", func() {
			err := wrapError(io.ErrClosedPipe, "pipe.txt")
			g.Assert(IsErrorCode(err, ErrCodeUnknownError)).IsTrue()
			g.Assert(errors.Is(err, io.ErrClosedPipe)).IsTrue()
		})
	})
}
