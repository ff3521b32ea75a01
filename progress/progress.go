// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package progress

import "sync"

// Progress counts work done against work expected.
//
// A Progress either holds its own counters or, once Shared has been called
// on it, reports the sum of its children. Children are created with Shared
// and handed to the stage that owns them; only that stage mutates them.
// Reads are safe from any goroutine at any time.
type Progress struct {
	// mu is shared by every node of one tree so that a read sees all
	// descendants at a single point in time.
	mu       *sync.RWMutex
	total    int64
	hasTotal bool
	count    int64
	children []*Progress
}

// Snapshot is a consistent view of a Progress at one instant.
type Snapshot struct {
	Total    int64
	HasTotal bool
	Count    int64
}

// Percent returns Count/Total*100 when Total is known and non-zero, and
// Count otherwise.
func (s Snapshot) Percent() float64 {
	if s.HasTotal && s.Total != 0 {
		return float64(s.Count) / float64(s.Total) * 100
	}
	return float64(s.Count)
}

// New creates an empty root Progress with no total.
func New() *Progress {
	return &Progress{mu: &sync.RWMutex{}}
}

// Shared creates a child of p and returns it. From now on p reports the sum
// of its children instead of its own counters.
func (p *Progress) Shared() *Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	child := &Progress{mu: p.mu}
	p.children = append(p.children, child)
	return child
}

// SetTotal sets the expected amount of work.
func (p *Progress) SetTotal(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = n
	p.hasTotal = true
}

// IncrementTotal raises the expected amount of work by n. An unset total
// starts from zero.
func (p *Progress) IncrementTotal(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total += n
	p.hasTotal = true
}

// SetCount sets the amount of work done.
func (p *Progress) SetCount(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count = n
}

// IncrementCount records n more units of work done.
func (p *Progress) IncrementCount(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count += n
}

// Total returns the expected amount of work and whether it is known.
func (p *Progress) Total() (int64, bool) {
	s := p.Snapshot()
	return s.Total, s.HasTotal
}

// Count returns the amount of work done.
func (p *Progress) Count() int64 {
	return p.Snapshot().Count
}

// Percent returns the completion percentage, or the count when no total is
// known. See Snapshot.Percent.
func (p *Progress) Percent() float64 {
	return p.Snapshot().Percent()
}

// Snapshot returns the aggregated counters of p under a single read lock.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snapshot()
}

// snapshot must be called with the tree lock held.
func (p *Progress) snapshot() Snapshot {
	if len(p.children) == 0 {
		return Snapshot{Total: p.total, HasTotal: p.hasTotal, Count: p.count}
	}
	var s Snapshot
	for _, child := range p.children {
		cs := child.snapshot()
		s.Count += cs.Count
		if cs.HasTotal {
			s.Total += cs.Total
			s.HasTotal = true
		}
	}
	return s
}
