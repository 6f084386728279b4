package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewProgressDefaults(t *testing.T) {
	p := NewProgress(&bytes.Buffer{}, nil, 0)
	assert.Equal(t, LoadingTexts, p.texts)
	assert.Equal(t, LoadingTextInterval, p.every)
}

func TestProgressRotatesSuffix(t *testing.T) {
	texts := []string{"one", "two"}
	p := NewProgress(&bytes.Buffer{}, texts, 10*time.Millisecond)

	p.Start()
	defer p.Stop()

	assert.Eventually(t, func() bool {
		s := strings.TrimSpace(p.Suffix())
		return s == "one" || s == "two"
	}, time.Second, 5*time.Millisecond)
}

func TestProgressStopIsIdempotent(t *testing.T) {
	p := NewProgress(&bytes.Buffer{}, []string{"waiting"}, time.Hour)

	p.Stop()
	p.Start()
	p.Start()
	p.Succeed("done")
	p.Fail("ignored")
	p.Stop()
}
