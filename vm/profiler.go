package vm

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Profiler tracks the instruction mix, unit invocation counts, call-site
// behavior and line coverage of an engine. Counting never alters control
// flow.
//
// Units become hot after HotThreshold invocations; OnHot is called once per
// unit when that happens.

// UnitProfile holds profiling data for a single compiled unit.
type UnitProfile struct {
	InvocationCount uint64 // Atomic counter for invocations
	hot             atomic.Bool
}

// IsHot reports whether the unit crossed the hot threshold.
func (p *UnitProfile) IsHot() bool { return p.hot.Load() }

// lineKey names one source line for coverage.
type lineKey struct {
	file string
	line int
}

// callSiteProfile counts dispatches through one call site.
type callSiteProfile struct {
	calls uint64
}

// Profiler manages profiling for all units and call sites of an engine.
type Profiler struct {
	opCounts [numOperations]uint64

	unitProfiles sync.Map // *CompiledUnit -> *UnitProfile
	callSites    sync.Map // *CallSite -> *callSiteProfile
	lines        sync.Map // lineKey -> *uint64

	clockTicks uint64
	hotCount   uint64

	// HotThreshold is the invocation count that makes a unit hot.
	HotThreshold uint64

	// OnHot is called when a unit becomes hot.
	OnHot func(unit *CompiledUnit, profile *UnitProfile)
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{HotThreshold: 100}
}

func (p *Profiler) instrTick(op Operation) {
	atomic.AddUint64(&p.opCounts[op], 1)
}

func (p *Profiler) clockTick() {
	atomic.AddUint64(&p.clockTicks, 1)
}

func (p *Profiler) recordCall(site *CallSite) {
	val, _ := p.callSites.LoadOrStore(site, &callSiteProfile{})
	atomic.AddUint64(&val.(*callSiteProfile).calls, 1)
}

func (p *Profiler) recordLine(file string, line int) {
	val, ok := p.lines.Load(lineKey{file, line})
	if !ok {
		val, _ = p.lines.LoadOrStore(lineKey{file, line}, new(uint64))
	}
	atomic.AddUint64(val.(*uint64), 1)
}

// LineHits returns how often a coverage-marked line of file ran.
func (p *Profiler) LineHits(file string, line int) uint64 {
	if val, ok := p.lines.Load(lineKey{file, line}); ok {
		return atomic.LoadUint64(val.(*uint64))
	}
	return 0
}

// RecordInvocation increments the invocation count for unit.
// Returns true if this invocation caused the unit to become hot.
func (p *Profiler) RecordInvocation(unit *CompiledUnit) bool {
	val, _ := p.unitProfiles.LoadOrStore(unit, &UnitProfile{})
	profile := val.(*UnitProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)
	if count >= p.HotThreshold && profile.hot.CompareAndSwap(false, true) {
		atomic.AddUint64(&p.hotCount, 1)
		if p.OnHot != nil {
			p.OnHot(unit, profile)
		}
		return true
	}
	return false
}

// UnitProfile returns the profile for unit, or nil if not tracked.
func (p *Profiler) UnitProfile(unit *CompiledUnit) *UnitProfile {
	if val, ok := p.unitProfiles.Load(unit); ok {
		return val.(*UnitProfile)
	}
	return nil
}

// OpCount returns how many times op was dispatched.
func (p *Profiler) OpCount(op Operation) uint64 {
	return atomic.LoadUint64(&p.opCounts[op])
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// CallSiteStat summarizes one call site.
type CallSiteStat struct {
	Name    string  `json:"name" cbor:"name"`
	Calls   uint64  `json:"calls" cbor:"calls"`
	State   string  `json:"state" cbor:"state"`
	HitRate float64 `json:"hit_rate" cbor:"hit_rate"`
}

// UnitStat summarizes one compiled unit.
type UnitStat struct {
	Name        string `json:"name" cbor:"name"`
	Kind        string `json:"kind" cbor:"kind"`
	Invocations uint64 `json:"invocations" cbor:"invocations"`
}

// ProfileSnapshot is a point-in-time copy of the profiler counters.
type ProfileSnapshot struct {
	OpCounts         map[string]uint64 `json:"op_counts" cbor:"op_counts"`
	CallSites        []CallSiteStat    `json:"call_sites" cbor:"call_sites"`
	HotUnits         []UnitStat        `json:"hot_units" cbor:"hot_units"`
	ClockTicks       uint64            `json:"clock_ticks" cbor:"clock_ticks"`
	TotalInvocations uint64            `json:"total_invocations" cbor:"total_invocations"`

	// Coverage maps file to line to hit count for coverage-marked lines.
	Coverage map[string]map[int]uint64 `json:"coverage,omitempty" cbor:"coverage,omitempty"`
}

// Snapshot copies the current counters. Call sites are ordered by call
// count, busiest first.
func (p *Profiler) Snapshot() ProfileSnapshot {
	snap := ProfileSnapshot{
		OpCounts:   make(map[string]uint64),
		ClockTicks: atomic.LoadUint64(&p.clockTicks),
	}
	for op := Operation(0); op < numOperations; op++ {
		if n := atomic.LoadUint64(&p.opCounts[op]); n > 0 {
			snap.OpCounts[op.String()] = n
		}
	}

	p.callSites.Range(func(key, value interface{}) bool {
		site := key.(*CallSite)
		snap.CallSites = append(snap.CallSites, CallSiteStat{
			Name:    site.Name(),
			Calls:   atomic.LoadUint64(&value.(*callSiteProfile).calls),
			State:   site.State().String(),
			HitRate: site.HitRate(),
		})
		return true
	})
	sort.SliceStable(snap.CallSites, func(i, j int) bool {
		return snap.CallSites[i].Calls > snap.CallSites[j].Calls
	})

	p.unitProfiles.Range(func(key, value interface{}) bool {
		unit := key.(*CompiledUnit)
		profile := value.(*UnitProfile)
		n := atomic.LoadUint64(&profile.InvocationCount)
		snap.TotalInvocations += n
		if profile.IsHot() {
			snap.HotUnits = append(snap.HotUnits, UnitStat{Name: unit.Name, Kind: unit.Kind.String(), Invocations: n})
		}
		return true
	})
	sort.Slice(snap.HotUnits, func(i, j int) bool {
		return snap.HotUnits[i].Invocations > snap.HotUnits[j].Invocations
	})

	p.lines.Range(func(key, value interface{}) bool {
		k := key.(lineKey)
		if snap.Coverage == nil {
			snap.Coverage = make(map[string]map[int]uint64)
		}
		if snap.Coverage[k.file] == nil {
			snap.Coverage[k.file] = make(map[int]uint64)
		}
		snap.Coverage[k.file][k.line] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	return snap
}

// TopUnits returns the N most frequently invoked units.
func (p *Profiler) TopUnits(n int) []*CompiledUnit {
	type unitCount struct {
		unit  *CompiledUnit
		count uint64
	}

	var all []unitCount
	p.unitProfiles.Range(func(key, value interface{}) bool {
		all = append(all, unitCount{key.(*CompiledUnit), atomic.LoadUint64(&value.(*UnitProfile).InvocationCount)})
		return true
	})

	// Simple selection sort for top N (fine for small N)
	for i := 0; i < n && i < len(all); i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].count > all[maxIdx].count {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}

	result := make([]*CompiledUnit, 0, n)
	for i := 0; i < n && i < len(all); i++ {
		result = append(result, all[i].unit)
	}
	return result
}

// HotCount returns the number of units that became hot.
func (p *Profiler) HotCount() uint64 { return atomic.LoadUint64(&p.hotCount) }

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	for op := range p.opCounts {
		atomic.StoreUint64(&p.opCounts[op], 0)
	}
	p.unitProfiles.Range(func(key, _ interface{}) bool {
		p.unitProfiles.Delete(key)
		return true
	})
	p.callSites.Range(func(key, _ interface{}) bool {
		p.callSites.Delete(key)
		return true
	})
	p.lines.Range(func(key, _ interface{}) bool {
		p.lines.Delete(key)
		return true
	})
	atomic.StoreUint64(&p.clockTicks, 0)
	atomic.StoreUint64(&p.hotCount, 0)
}
