package batch

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type liveProgress struct {
	enabled bool

	index   int
	total   int
	project string

	mu    sync.Mutex
	phase string
	note  string

	stop chan struct{}
}

func newLiveProgress(enabled bool, index, total int, project string) *liveProgress {
	return &liveProgress{
		enabled: enabled,
		index:   index,
		total:   total,
		project: project,
		phase:   "starting",
		stop:    make(chan struct{}),
	}
}

func (p *liveProgress) Start() {
	if !p.enabled {
		return
	}
	go func() {
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Printf("\r\033[2K%s", p.render())
			}
		}
	}()
}

func (p *liveProgress) Stop(final string) {
	if !p.enabled {
		return
	}
	close(p.stop)
	fmt.Printf("\r\033[2K%s\n", final)
}

func (p *liveProgress) SetPhase(phase string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

func (p *liveProgress) SetNote(note string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	p.note = note
	p.mu.Unlock()
}

func (p *liveProgress) render() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	project := p.project
	if len(project) > 52 {
		project = project[:52] + "..."
	}

	parts := []string{fmt.Sprintf("[%d/%d] %s", p.index, p.total, project), p.phase}
	if p.note != "" {
		parts = append(parts, p.note)
	}
	return strings.Join(parts, "  ")
}
