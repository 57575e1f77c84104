package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// lockedBuffer lets the test read while the spinner goroutine writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	var buf lockedBuffer
	sp := NewSpinner(&buf)
	sp.Start("Loading...")
	time.Sleep(200 * time.Millisecond)
	sp.Stop()

	require.Contains(t, buf.String(), "Loading...")
}

func TestSpinnerStopIdempotent(t *testing.T) {
	var buf lockedBuffer
	sp := NewSpinner(&buf)
	sp.Stop() // before Start

	sp.Start("test")
	time.Sleep(100 * time.Millisecond)
	sp.Stop()
	sp.Stop()
	sp.Stop()
}

func TestSpinnerProgress(t *testing.T) {
	var buf lockedBuffer
	sp := NewSpinner(&buf)
	sp.Start("Scanning")
	time.Sleep(150 * time.Millisecond)
	sp.Progress(3, 10, "a.py")
	time.Sleep(150 * time.Millisecond)
	sp.Stop()

	out := buf.String()
	require.Contains(t, out, "Scanning")
	require.Contains(t, out, "Scanning 3/10 files")
}

func TestSpinnerConcurrentUpdate(t *testing.T) {
	defer goleak.VerifyNone(t)
	var buf lockedBuffer
	sp := NewSpinner(&buf)
	sp.Start("start")

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp.Progress(i, 10, "")
		}()
	}
	wg.Wait()
	sp.Stop()
}

func TestSpinnerClearsLine(t *testing.T) {
	var buf lockedBuffer
	sp := NewSpinner(&buf)
	sp.Start("working")
	time.Sleep(100 * time.Millisecond)
	sp.Stop()

	require.True(t, strings.HasSuffix(buf.String(), "\r"))
}
