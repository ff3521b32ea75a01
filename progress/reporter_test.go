package progress

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReporter_WithTotal(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	p.SetTotal(200)
	p.IncrementCount(50)

	r := NewReporter(&buf, p, time.Second)
	r.Report()

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "\rProgress: 50/200"), "got %q", output)
	assert.Contains(t, output, "(25.0%)")
	assert.Contains(t, output, "items/s")
}

func TestReporter_ZeroTotalShowsCount(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	p.SetTotal(0)
	p.IncrementCount(3)

	r := NewReporter(&buf, p, time.Second)
	r.Report()

	output := buf.String()
	assert.Contains(t, output, "Progress: 3/0")
	assert.Contains(t, output, "(3.0%)")
}

func TestReporter_WithoutTotal(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	p.IncrementCount(7)

	r := NewReporter(&buf, p, time.Second)
	r.Report()

	output := buf.String()
	assert.Contains(t, output, "Progress: 7 -")
	assert.NotContains(t, output, "%")
}

func TestReporter_Finish(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	p.SetTotal(10)
	p.SetCount(10)

	r := NewReporter(&buf, p, time.Second)
	r.Finish()

	output := buf.String()
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "100.0%")
	assert.True(t, strings.HasSuffix(output, "\n"), "finish should print newline")
}

func TestReporter_Run(t *testing.T) {
	var buf bytes.Buffer
	p := New()
	p.IncrementCount(1)

	r := NewReporter(&buf, p, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	<-done

	lines := strings.Count(buf.String(), "\rProgress:")
	assert.GreaterOrEqual(t, lines, 2, "should report on every tick")
	assert.Greater(t, r.Elapsed(), time.Duration(0))
}

func TestReporter_DefaultInterval(t *testing.T) {
	r := NewReporter(&bytes.Buffer{}, New(), 0)
	assert.Equal(t, DefaultReportInterval, r.interval)
}
