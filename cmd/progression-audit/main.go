// Command progression-audit reports service methods that write course, subject, or
// trainee status through repositories instead of the progression aggregates.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Trainer verdicts are set directly; they never feed the cascade.
const defaultAllow = "gradingService.SetCourseResult"

func main() {
	var allowList string
	var strict bool
	flag.StringVar(&allowList, "allow", defaultAllow, "comma-separated struct.Method entries permitted to write status directly")
	flag.BoolVar(&strict, "strict", false, "exit 1 when residual status writes are found")
	flag.Parse()

	root := "."
	if flag.NArg() > 0 {
		root = flag.Arg(0)
	}

	report, err := audit(root, parseAllow(allowList))
	if err != nil {
		exitf("audit: %v", err)
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if strict && report.MethodsWithResidualWrites > 0 {
		exitf("%d service methods write progression status outside the aggregates", report.MethodsWithResidualWrites)
	}
}

func audit(root string, allow map[string]bool) (auditReport, error) {
	servicesDir := filepath.Join(root, "internal", "services")
	fset, files, err := parseServices(servicesDir)
	if err != nil {
		return auditReport{}, fmt.Errorf("parse %s: %w", servicesDir, err)
	}
	if len(files) == 0 {
		return auditReport{}, fmt.Errorf("no Go files in %s", servicesDir)
	}

	fieldsByStruct := map[string]structFields{}
	for _, f := range files {
		collectStructFields(f, fieldsByStruct)
	}
	var methods []methodStats
	for path, f := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		collectMethodStats(fset, f, rel, fieldsByStruct, &methods)
	}
	return buildReport(fieldsByStruct, methods, allow), nil
}

func parseAllow(s string) map[string]bool {
	out := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out[part] = true
		}
	}
	return out
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
