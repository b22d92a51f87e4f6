package sandbox

import (
	"sync"
	"testing"

	. "github.com/franela/goblin"
)

func TestGate_Acquire(t *testing.T) {
	g := Goblin(t)

	g.Describe("Gate", func() {
		g.It("admits operations up to the limit and rejects the next immediately", func() {
			gate := NewGate(2)

			g.Assert(gate.Acquire()).IsNil()
			g.Assert(gate.Acquire()).IsNil()

			err := gate.Acquire()
			g.Assert(err).IsNotNil()
			g.Assert(IsErrorCode(err, ErrCodeTooBusy)).IsTrue()
			g.Assert(gate.Active()).Equal(2)
		})

		g.It("admits again after a release", func() {
			gate := NewGate(1)

			g.Assert(gate.Acquire()).IsNil()
			g.Assert(gate.Acquire()).IsNotNil()

			gate.Release()
			g.Assert(gate.Active()).Equal(0)
			g.Assert(gate.Acquire()).IsNil()
		})

		g.It("treats a release without a matching acquire as a no-op", func() {
			gate := NewGate(1)
			gate.Release()
			g.Assert(gate.Active()).Equal(0)
		})

		g.It("clamps a non-positive limit to one", func() {
			gate := NewGate(0)
			g.Assert(gate.Limit()).Equal(1)
		})

		g.It("rejects at least one of limit+1 simultaneous acquires", func() {
			gate := NewGate(4)

			var wg sync.WaitGroup
			errs := make([]error, 5)
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = gate.Acquire()
				}(i)
			}
			wg.Wait()

			var rejected int
			for _, err := range errs {
				if err != nil {
					g.Assert(IsErrorCode(err, ErrCodeTooBusy)).IsTrue()
					rejected++
				}
			}
			g.Assert(rejected).Equal(1)
			g.Assert(gate.Active()).Equal(4)
		})
	})
}

func TestSandbox_GatedOperations(t *testing.T) {
	g := Goblin(t)
	s, rfs := newTestSandbox()

	g.Describe("operation admission", func() {
		g.It("rejects an operation while the gate is saturated and admits it after release", func() {
			g.Assert(rfs.CreateSandboxFileFromString("test.txt", "content")).IsNil()

			for i := 0; i < s.Gate().Limit(); i++ {
				g.Assert(s.Gate().Acquire()).IsNil()
			}

			_, err := s.ReadFile("test.txt")
			g.Assert(err).IsNotNil()
			g.Assert(IsErrorCode(err, ErrCodeTooBusy)).IsTrue()

			s.Gate().Release()
			_, err = s.ReadFile("test.txt")
			g.Assert(err).IsNil()
		})

		g.It("releases the slot even when the operation fails", func() {
			for i := 0; i < 10; i++ {
				_, err := s.ReadFile("missing.txt")
				g.Assert(IsErrorCode(err, ErrCodeNotExist)).IsTrue()
			}
			g.Assert(s.Gate().Active()).Equal(0)
		})

		g.It("does not gate listing or searching", func() {
			for i := 0; i < s.Gate().Limit(); i++ {
				g.Assert(s.Gate().Acquire()).IsNil()
			}

			_, err := s.ListDirectory("")
			g.Assert(err).IsNil()

			_, err = s.Search("anything", SearchOptions{})
			g.Assert(err).IsNil()
		})

		g.AfterEach(func() {
			for s.Gate().Active() > 0 {
				s.Gate().Release()
			}
			rfs.reset()
		})
	})
}
