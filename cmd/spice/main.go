// Command spice runs a text netlist through the DC, transient, or DC-sweep
// analysis it names and prints a results table.
//
// Adapted from the teacher's cmd/main.go: argv dispatch and
// log.Fatalf-on-error style kept; the AC branch is dropped (explicit spec
// Non-goal) and the analyzer interface is replaced by direct calls into
// analysis.DCAnalysis/Transient/DCSweep over a circuit.CompiledCircuit.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/edp1096/swspice/analysis"
	"github.com/edp1096/swspice/circuit"
	"github.com/edp1096/swspice/internal/format"
	"github.com/edp1096/swspice/netlist"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("Usage: spice <netlist_file>")
	}

	content, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading netlist file: %v", err)
	}

	nl, err := netlist.Parse(string(content))
	if err != nil {
		log.Fatalf("parsing netlist: %v", err)
	}

	cc, err := netlist.Build(nl)
	if err != nil {
		log.Fatalf("building circuit: %v", err)
	}

	switch nl.Analysis {
	case netlist.AnalysisOP:
		res, err := analysis.DCAnalysis(cc, analysis.DCOptions{})
		if err != nil {
			log.Fatalf("DC analysis: %v", err)
		}
		printDC(cc, res)

	case netlist.AnalysisTRAN:
		res, err := analysis.Transient(cc, analysis.TransientOptions{
			TStart: nl.Tran.TStart, TStop: nl.Tran.TStop, H: nl.Tran.TStep,
			Method: nl.Method, MaxStep: nl.Tran.TMax, Adaptive: true,
		})
		if err != nil {
			log.Fatalf("transient analysis: %v", err)
		}
		printTransient(res)

	case netlist.AnalysisDC:
		points, err := analysis.DCSweep(cc, nl.DC.Source, nl.DC.Start, nl.DC.Stop, nl.DC.Increment, analysis.DCOptions{})
		if err != nil {
			log.Fatalf("DC sweep: %v", err)
		}
		printDCSweep(cc, points)

	default:
		log.Fatal("unsupported analysis type")
	}
}

func sortedNames(cc *circuit.CompiledCircuit) []string {
	names := make([]string, 0, len(cc.NodeIndex))
	for name := range cc.NodeIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printDC(cc *circuit.CompiledCircuit, res analysis.DCResult) {
	fmt.Println("\nNode Voltages:")
	for _, name := range sortedNames(cc) {
		fmt.Printf("V(%s) = %s\n", name, format.ValueFactor(res.NodeVoltage(name), "V"))
	}
	if !res.Converged {
		fmt.Printf("\nWARNING: did not converge (%s)\n", res.Reason)
	}
	for _, d := range res.Diagnostics {
		fmt.Printf("DIAG: %s\n", d.Message)
	}
}

func printTransient(res analysis.TransientResult) {
	fmt.Printf("\nTransient Analysis Results (%d time points, %d accepted / %d rejected steps):\n",
		len(res.TimePoints), res.StepsAccepted, res.StepsRejected)

	var names []string
	for name := range res.NodeVoltages {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Time        Node Voltages")
	fmt.Println("------------------------------------------------")
	for i, t := range res.TimePoints {
		fmt.Printf("%s  ", format.ValueFactor(t, "s"))
		for _, name := range names {
			fmt.Printf("V(%s)=%s  ", name, format.ValueFactor(res.NodeVoltages[name][i], "V"))
		}
		fmt.Println()
	}
	if !res.Converged {
		fmt.Printf("\nWARNING: did not converge (%s)\n", res.Reason)
	}
	for _, d := range res.Diagnostics {
		fmt.Printf("DIAG: %s\n", d.Message)
	}
}

func printDCSweep(cc *circuit.CompiledCircuit, points []analysis.DCSweepPoint) {
	fmt.Printf("\nDC Sweep Analysis Results (%d points):\n", len(points))
	fmt.Println("Sweep Value    Node Voltages")
	fmt.Println("------------------------------------------------")
	names := sortedNames(cc)
	for _, p := range points {
		fmt.Printf("%s  ", format.ValueFactor(p.Value, "V"))
		for _, name := range names {
			fmt.Printf("V(%s)=%s  ", name, format.ValueFactor(p.Result.NodeVoltage(name), "V"))
		}
		fmt.Println()
	}
}
