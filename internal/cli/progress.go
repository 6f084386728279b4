package cli

import (
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// LoadingTexts are shown while waiting for a sign-in to complete.
var LoadingTexts = []string{
	"Authenticating with secure provider...",
	"Verifying your identity...",
	"Syncing your security credentials...",
	"Confirming sharing privileges...",
	"Checking vault sharing authorization...",
}

// LoadingTextInterval is how often the spinner text changes.
const LoadingTextInterval = 2500 * time.Millisecond

// Progress is a spinner whose suffix cycles through a set of messages.
type Progress struct {
	s     *spinner.Spinner
	texts []string
	every time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewProgress returns a stopped spinner writing to w.
func NewProgress(w io.Writer, texts []string, every time.Duration) *Progress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	if len(texts) == 0 {
		texts = LoadingTexts
	}
	if every <= 0 {
		every = LoadingTextInterval
	}
	return &Progress{s: s, texts: texts, every: every}
}

// Start starts the spinner and the text rotation.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.s.Suffix = " " + p.texts[rand.IntN(len(p.texts))]
	p.s.Start()

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.rotate(p.stop, p.done)
}

func (p *Progress) rotate(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.s.Lock()
			p.s.Suffix = " " + p.texts[rand.IntN(len(p.texts))]
			p.s.Unlock()
		}
	}
}

// Suffix returns the text currently shown.
func (p *Progress) Suffix() string {
	p.s.Lock()
	defer p.s.Unlock()
	return p.s.Suffix
}

// Visible reports whether the spinner is drawing. It is not when the
// writer is not a terminal.
func (p *Progress) Visible() bool {
	return p.s.Active()
}

// Succeed stops the spinner and prints msg in green.
func (p *Progress) Succeed(msg string) {
	p.finish(text.FgGreen.Sprint(msg) + "\n")
}

// Fail stops the spinner and prints msg in red.
func (p *Progress) Fail(msg string) {
	p.finish(text.FgRed.Sprint(msg) + "\n")
}

// Stop stops the spinner without a final message.
func (p *Progress) Stop() {
	p.finish("")
}

func (p *Progress) finish(final string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	p.s.FinalMSG = final
	p.s.Stop()
}
