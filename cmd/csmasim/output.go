package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/kb"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func printRun(w io.Writer, rec kb.Record, timing core.Timing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Scenario: %s\tRun: %s\n\n", rec.Scenario, rec.ID)
	fmt.Fprintln(tw, "Station\tRate (fps)\tGenerated\tDelivered\tCollisions\tDropped\tQueued\tAvg delay (ms)\tUtilization")
	slot := rec.Result.SlotDuration
	for i, st := range core.SummarizeStations(rec.Result, timing) {
		fmt.Fprintf(tw, "%s\t%.0f\t%d\t%d\t%d\t%d\t%d\t%.3f\t%.4f\n",
			st.ID,
			rec.Result.Stations[i].ArrivalRate,
			st.Generated,
			st.Successes,
			st.Collisions,
			st.Dropped,
			st.Remaining,
			st.AverageDelaySlots*slot*1e3,
			st.Utilization,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	sum := rec.Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Throughput:      %.2f Mbps\n", sum.ThroughputBps/1e6)
	fmt.Fprintf(w, "Collision rate:  %.4f\n", sum.CollisionRate)
	fmt.Fprintf(w, "Average delay:   %.3f ms\n", sum.AverageDelaySeconds*1e3)
	fmt.Fprintf(w, "Utilization:     %.4f\n", sum.Utilization)
	return nil
}

func printSweep(w io.Writer, res sweep.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Scenario: %s\tSweep: %s\n\n", res.Scenario, res.ID)
	fmt.Fprintln(tw, "Rate (fps)\tThroughput (Mbps)\tCollision rate\tAvg delay (ms)\tUtilization\tDelivered\tDropped")
	for _, p := range res.Points {
		fmt.Fprintf(tw, "%.0f\t%.3f\t%.4f\t%.3f\t%.4f\t%d\t%d\n",
			p.ArrivalRate,
			p.Summary.ThroughputBps/1e6,
			p.Summary.CollisionRate,
			p.Summary.AverageDelaySeconds*1e3,
			p.Summary.Utilization,
			p.Summary.Successes,
			p.Summary.Dropped,
		)
	}
	return tw.Flush()
}
