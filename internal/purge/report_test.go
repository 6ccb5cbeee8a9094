package purge

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifier_order(t *testing.T) {
	var got []string
	n := NewNotifier(func(s string) { got = append(got, s) }, 4)
	for i := range 3 {
		n.Report(fmt.Sprint(i))
	}
	n.Close()

	assert.Equal(t, []string{"0", "1", "2"}, got)
	assert.Equal(t, 0, n.Dropped())
}

func TestNotifier_slowSink(t *testing.T) {
	var (
		mu      sync.Mutex
		got     []string
		release = make(chan struct{})
	)
	n := NewNotifier(func(s string) {
		<-release
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 100 {
			n.Report(fmt.Sprint(i))
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Report blocked on a slow sink")
	}
	close(release)
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	if assert.NotEmpty(t, got) {
		assert.Equal(t, "99", got[len(got)-1], "the last message must be delivered")
	}
	assert.Positive(t, n.Dropped())
	assert.Equal(t, 100, len(got)+n.Dropped())
}

func TestNotifier_afterClose(t *testing.T) {
	var got []string
	n := NewNotifier(func(s string) { got = append(got, s) }, 0)
	n.Report("a")
	n.Close()
	n.Report("b")
	n.Close()
	assert.Equal(t, []string{"a"}, got)
}

func TestReporterFunc(t *testing.T) {
	var got string
	var r Reporter = ReporterFunc(func(s string) { got = s })
	r.Report("x")
	assert.Equal(t, "x", got)
}

func TestUnavailableError(t *testing.T) {
	cause := errors.New("404 Not Found")
	err := fmt.Errorf("resolve: %w", &UnavailableError{Kind: KindGroup, ID: 123, Err: cause})

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	var ue *UnavailableError
	if assert.ErrorAs(t, err, &ue) {
		assert.Equal(t, KindGroup, ue.Kind)
	}
	assert.EqualError(t, err, "resolve: could not locate group chat 123: 404 Not Found")
}
