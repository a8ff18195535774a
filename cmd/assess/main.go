// Command assess runs the obligation inference offline against a dossier
// described on the command line, without a server or a database.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"duerp.org/internal/catalogue"
	"duerp.org/internal/prevention"
)

func main() {
	log.SetFlags(0)
	var (
		workforce = flag.Int("workforce", 0, "Total workforce size (0 = unknown)")
		surface   = flag.Float64("surface", 0, "Premises surface in m2 (0 = unknown)")
		sector    = flag.String("sector", "", "Activity sector, e.g. restauration")
		hazards   = flag.String("hazards", "", "Comma-separated hazard descriptions; - reads one per line from stdin")
		asJSON    = flag.Bool("json", false, "Emit the evaluation as JSON")
	)
	flag.Parse()

	facts := prevention.Facts{
		WorkforceSize: *workforce,
		SurfaceAreaM2: *surface,
		Sector:        *sector,
	}
	for _, hazard := range readHazards(*hazards) {
		facts.Risks = append(facts.Risks, prevention.Risk{Hazard: hazard})
	}

	cat := catalogue.Default()
	eval := prevention.InferObligations(cat, facts)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(eval); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}

	printReport(cat, eval)
}

func readHazards(raw string) []string {
	var out []string
	if raw == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				out = append(out, line)
			}
		}
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printReport(cat catalogue.Catalogue, eval prevention.Evaluation) {
	fmt.Printf("Evaluation du %s\n\n", time.Now().Format("2006-01-02"))

	fmt.Println("Equipements:")
	for _, ob := range eval.Equipment {
		name := ob.TypeID
		if def, ok := cat.EquipmentType(ob.TypeID); ok {
			name = def.Label
		}
		marker := "obligatoire"
		if !ob.Mandatory {
			marker = "recommandé"
		}
		fmt.Printf("  - %s ×%d (%s) — %s\n", name, ob.Quantity, marker, ob.Rationale)
	}

	fmt.Println("\nFormations:")
	for _, ob := range eval.Training {
		name := ob.TypeID
		if def, ok := cat.CertificationType(ob.TypeID); ok {
			name = def.Label
		}
		headcount := "au moins 1 personne"
		if ob.Headcount != nil {
			headcount = fmt.Sprintf("%d personne(s)", *ob.Headcount)
		}
		marker := "obligatoire"
		if !ob.Mandatory {
			marker = "recommandé"
		}
		fmt.Printf("  - %s: %s (%s) — %s\n", name, headcount, marker, ob.Rationale)
	}

	if len(eval.Alerts) > 0 {
		fmt.Println("\nAlertes:")
		for _, alert := range eval.Alerts {
			fmt.Printf("  [%s] %s\n", alert.Severity, alert.Message)
		}
	}
}
