package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/pavanmanishd/slotarena"
)

type workloadConfig struct {
	arena   arena.Config
	objects int
	rounds  int
}

type sample struct {
	Timestamp int64
	Value     float64
}

type labelPair struct {
	Name  [16]byte
	Value [32]byte
}

// destroyCounter counts destructor calls per record kind.
type destroyCounter struct {
	samples, labels, buffers int
}

func (c *destroyCounter) total() int {
	return c.samples + c.labels + c.buffers
}

// runWorkload constructs cfg.objects mixed records per round, prints the
// per-arena table and the collected metrics, then releases the arena set.
func runWorkload(out io.Writer, logger log.Logger, cfg workloadConfig) error {
	if cfg.objects < 0 {
		return errors.Errorf("objects must not be negative, got %d", cfg.objects)
	}
	rounds := max(cfg.rounds, 1)

	reg := prometheus.NewRegistry()
	g, err := arena.NewGrowingArenaFromConfig(cfg.arena,
		arena.WithLogger(logger),
		arena.WithMetrics(arena.NewMetrics(reg)),
	)
	if err != nil {
		return errors.Wrap(err, "creating arena")
	}

	var counter destroyCounter
	for round := 0; round < rounds; round++ {
		if round > 0 {
			if err := g.Reset(); err != nil {
				level.Warn(logger).Log("msg", "reset reported destructor failures", "err", err)
			}
		}
		if err := construct(g, cfg.objects, &counter); err != nil {
			_ = g.Release()
			return err
		}
		level.Debug(logger).Log("msg", "round done", "round", round, "arenas", g.NumArenas(), "in_use", humanize.IBytes(uint64(g.SizeInUse())))
	}

	printArenas(out, g)
	if err := printMetrics(out, reg); err != nil {
		_ = g.Release()
		return err
	}

	if err := g.Release(); err != nil {
		return errors.Wrap(err, "releasing arena")
	}
	level.Info(logger).Log("msg", "arena released", "destructors", counter.total(), "samples", counter.samples, "labels", counter.labels, "buffers", counter.buffers)
	return nil
}

func construct(g *arena.GrowingArena, n int, counter *destroyCounter) error {
	for i := 0; i < n; i++ {
		var err error
		switch i % 3 {
		case 0:
			_, err = arena.ConstructWith(g, sample{Timestamp: int64(i), Value: float64(i) / 2}, func(*sample) {
				counter.samples++
			})
		case 1:
			var l labelPair
			copy(l.Name[:], "job")
			copy(l.Value[:], strconv.Itoa(i))
			_, err = arena.ConstructWith(g, l, func(*labelPair) {
				counter.labels++
			})
		case 2:
			var buf []uint64
			buf, err = arena.MakeSlice[uint64](g, 1+i%64)
			if err == nil {
				buf[0] = uint64(i)
				_, err = arena.ConstructWith(g, len(buf), func(*int) {
					counter.buffers++
				})
			}
		}
		if err != nil {
			return errors.Wrapf(err, "constructing record %d", i)
		}
	}
	return nil
}

func printArenas(out io.Writer, g *arena.GrowingArena) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Arena", "Capacity", "In use", "Remaining", "Slots", "Utilization"})
	for i, s := range g.ArenaStats() {
		table.Append([]string{
			strconv.Itoa(i),
			humanize.IBytes(uint64(s.Capacity)),
			humanize.IBytes(uint64(s.SizeInUse)),
			humanize.IBytes(uint64(s.Remaining)),
			strconv.Itoa(s.NumSlots),
			fmt.Sprintf("%.1f%%", s.Utilization*100),
		})
	}
	total := g.Stats()
	table.SetFooter([]string{
		"total",
		humanize.IBytes(uint64(total.Capacity)),
		humanize.IBytes(uint64(total.SizeInUse)),
		"",
		strconv.Itoa(total.NumSlots),
		fmt.Sprintf("%.1f%%", total.Utilization*100),
	})
	table.Render()
}

func printMetrics(out io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(out, "%s %s\n", mf.GetName(), formatValue(mf.GetType(), m))
		}
	}
	return nil
}

func formatValue(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)
	case dto.MetricType_GAUGE:
		return strconv.FormatFloat(m.GetGauge().GetValue(), 'f', -1, 64)
	default:
		return "?"
	}
}
